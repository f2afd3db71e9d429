package seckill

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SuccessText = "抢购成功！商品ID: "
	FailureText = "已售罄或商品无效！商品ID: "
)

// Purchase results as exported on the purchases counter.
const (
	resultSuccess   = "success"
	resultSoldOut   = "sold_out"
	resultInvalid   = "invalid"
	resultError     = "error"
	resultAbandoned = "abandoned"
)

// Options tunes the Server.
type Options struct {
	ProductID int           // the only product on sale; defaults to 1
	Delay     time.Duration // artificial latency added before a purchase is decided
	// DelayEvery applies Delay only to every n-th purchase request. Values
	// below 2 delay every request.
	DelayEvery int
	// Registry receives the server metrics. A private registry is created when nil.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

// Server serves the flash-sale endpoints for one product.
type Server struct {
	stock Stock
	opt   Options
	mux   *http.ServeMux
	seq   atomic.Int64

	purchases *prometheus.CounterVec
	remaining prometheus.Gauge
	latency   prometheus.Histogram
}

func NewServer(stock Stock, opt Options) *Server {
	if opt.ProductID == 0 {
		opt.ProductID = 1
	}
	if opt.Registry == nil {
		opt.Registry = prometheus.NewRegistry()
	}
	if opt.Logger == nil {
		opt.Logger = log.New(io.Discard, "", 0)
	}

	s := &Server{
		stock: stock,
		opt:   opt,
		mux:   http.NewServeMux(),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seckill_purchases_total",
			Help: "Purchase requests by result",
		}, []string{"result"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seckill_stock_remaining",
			Help: "Units left after the last purchase decision",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seckill_purchase_duration_seconds",
			Help:    "Time spent handling a purchase request",
			Buckets: prometheus.DefBuckets,
		}),
	}
	opt.Registry.MustRegister(s.purchases, s.remaining, s.latency)
	if n, err := stock.Remaining(context.Background()); err == nil {
		s.remaining.Set(float64(n))
	}

	s.mux.HandleFunc("POST /seckill/buy/{productId}", s.handleBuy)
	s.mux.HandleFunc("GET /seckill/stock/{productId}", s.handleStock)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(opt.Registry, promhttp.HandlerOpts{}))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.latency.Observe(time.Since(start).Seconds()) }()

	raw := r.PathValue("productId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.purchases.WithLabelValues(resultInvalid).Inc()
		http.Error(w, "invalid product id "+strconv.Quote(raw), http.StatusBadRequest)
		return
	}

	if s.shouldDelay() {
		select {
		case <-time.After(s.opt.Delay):
		case <-r.Context().Done():
			s.purchases.WithLabelValues(resultAbandoned).Inc()
			return
		}
	}

	if id != s.opt.ProductID {
		s.opt.Logger.Printf("invalid product id %d", id)
		s.purchases.WithLabelValues(resultInvalid).Inc()
		writeText(w, http.StatusOK, FailureText+strconv.Itoa(id))
		return
	}

	remaining, ok, err := s.stock.TryAcquire(r.Context())
	if err != nil {
		s.opt.Logger.Printf("purchase failed: %v", err)
		s.purchases.WithLabelValues(resultError).Inc()
		http.Error(w, "stock unavailable", http.StatusInternalServerError)
		return
	}
	s.remaining.Set(float64(remaining))
	if !ok {
		s.purchases.WithLabelValues(resultSoldOut).Inc()
		writeText(w, http.StatusOK, FailureText+strconv.Itoa(id))
		return
	}
	s.purchases.WithLabelValues(resultSuccess).Inc()
	s.opt.Logger.Printf("purchase ok product=%d remaining=%d", id, remaining)
	writeText(w, http.StatusOK, SuccessText+strconv.Itoa(id))
}

type stockResponse struct {
	ProductID int   `json:"product_id"`
	Remaining int64 `json:"remaining"`
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("productId"))
	if err != nil || id != s.opt.ProductID {
		writeJSON(w, http.StatusNotFound, stockResponse{ProductID: id, Remaining: -1})
		return
	}
	n, err := s.stock.Remaining(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("read stock: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id, Remaining: n})
}

func (s *Server) shouldDelay() bool {
	if s.opt.Delay <= 0 {
		return false
	}
	n := s.seq.Add(1)
	if s.opt.DelayEvery < 2 {
		return true
	}
	return n%int64(s.opt.DelayEvery) == 0
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
