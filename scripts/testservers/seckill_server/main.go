package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/torosent/seckillprobe/internal/seckill"
)

type stockMode string

const (
	modeAtomic stockMode = "atomic"
	modeRacy   stockMode = "racy"
	modeRedis  stockMode = "redis"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	mode := flag.String("stock", string(modeAtomic), "Stock backend: atomic, racy, redis")
	initial := flag.Int64("initial-stock", 100, "Units available when the server starts")
	productID := flag.Int("product", 1, "Product id on sale")
	racyWindow := flag.Duration("racy-window", 2*time.Millisecond, "Gap between reading and writing the stock in racy mode")
	redisAddr := flag.String("redis-addr", "127.0.0.1:6379", "Redis address for the redis backend")
	redisKey := flag.String("redis-key", "seckill:stock:1", "Redis key holding the stock")
	delay := flag.Duration("delay", 0, "Artificial delay before each purchase is decided")
	delayEvery := flag.Int("delay-every", 0, "Only delay every n-th purchase request")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	logger := log.New(os.Stderr, "[seckill] ", log.LstdFlags|log.Lmicroseconds)

	var stock seckill.Stock
	switch stockMode(strings.ToLower(*mode)) {
	case modeAtomic:
		stock = seckill.NewAtomicStock(*initial)
	case modeRacy:
		stock = seckill.NewRacyStock(*initial, *racyWindow)
	case modeRedis:
		ev := seckill.NewGoRedisEvaler(*redisAddr)
		defer ev.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s, err := seckill.NewRedisStock(ctx, ev, *redisKey, *initial)
		cancel()
		if err != nil {
			log.Fatalf("redis stock: %v", err)
		}
		stock = s
	default:
		log.Fatalf("unknown stock backend %q", *mode)
	}

	srv := seckill.NewServer(stock, seckill.Options{
		ProductID:  *productID,
		Delay:      *delay,
		DelayEvery: *delayEvery,
		Logger:     logger,
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("seckill server listening on %s (stock=%s initial=%d product=%d)", addr, *mode, *initial, *productID)
	log.Fatal(http.ListenAndServe(addr, srv))
}
