package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/seckillprobe/internal/metrics"
	"github.com/torosent/seckillprobe/internal/outcome"
)

// RunConfig holds probe parameters for display.
type RunConfig struct {
	TargetURL    string        // Full target URL
	Method       string        // HTTP method
	Concurrency  int           // Number of concurrent workers
	Total        int           // Attempts to dispatch
	InitialStock int           // Stock the target started with
	Rate         int           // Attempts per second (0 = unlimited)
	Timeout      time.Duration // Request timeout
	ConfigFile   string        // Path to config file if used
}

// Dashboard renders a live terminal UI for a running probe.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	summaryPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	stockGauge     *widgets.Gauge
	outcomeList    *widgets.List
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	errorList      *widgets.List
	latencyHistory []float64
	startTime      time.Time
	runDuration    time.Duration
	runConfig      RunConfig
}

// New creates a new Dashboard. shutdownFunc runs when the user presses q or
// Ctrl-C.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Seckill Probe"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Attempts"
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.stockGauge = widgets.NewGauge()
	d.stockGauge.Title = "Stock Claimed"
	d.stockGauge.BarColor = ui.ColorGreen
	d.stockGauge.BorderStyle.Fg = ui.ColorCyan
	d.stockGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.outcomeList = widgets.NewList()
	d.outcomeList.Title = "Outcomes"
	d.outcomeList.Rows = []string{"Awaiting data"}
	d.outcomeList.BorderStyle.Fg = ui.ColorCyan

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Mean Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Error Causes"
	d.errorList.Rows = []string{"[No errors](fg:green)"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.stockGauge),
		),
		ui.NewRow(0.40,
			ui.NewCol(0.5, d.outcomeList),
			ui.NewCol(0.5, d.errorList),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.runDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.update()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)

	if stats.MeanLatency > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.MeanLatencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Mean Latency | Current: %.2fms | Max: %.2fms",
			stats.MeanLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s %s\n%s\nElapsed: %s | RPS: %.1f | Press q to quit",
		d.runConfig.Method,
		d.runConfig.TargetURL,
		d.formatRunParams(),
		elapsed.Round(100*time.Millisecond),
		stats.RequestsPerSec,
	)

	d.progressGauge.Percent = percentOf(stats.Total, int64(d.runConfig.Total))
	d.progressGauge.Label = fmt.Sprintf("%d / %d", stats.Total, d.runConfig.Total)

	percent, label, color := stockGaugeState(stats.Successes, int64(d.runConfig.InitialStock))
	d.stockGauge.Percent = percent
	d.stockGauge.Label = label
	d.stockGauge.BarColor = color

	d.outcomeList.Rows = formatOutcomeRows(stats.Breakdown)
	d.errorList.Rows = formatErrorRows(stats.Errors)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P99LatencyMs,
	)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func percentOf(part, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(part * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}

// stockGaugeState turns red and says so once successes pass the stock.
func stockGaugeState(successes, stock int64) (int, string, ui.Color) {
	if successes > stock {
		return 100, fmt.Sprintf("OVERSOLD %d / %d", successes, stock), ui.ColorRed
	}
	if stock == 0 {
		return 100, "0 / 0", ui.ColorGreen
	}
	return percentOf(successes, stock), fmt.Sprintf("%d / %d", successes, stock), ui.ColorGreen
}

func formatOutcomeRows(rows []metrics.CategoryCount) []string {
	if len(rows) == 0 {
		return []string{"Awaiting data"}
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%-20s](fg:%s) %d", row.Label, categoryColor(row.Category), row.Count))
	}
	return formatted
}

func categoryColor(c outcome.Category) string {
	switch c {
	case outcome.Success:
		return "green"
	case outcome.SoldOutOrInvalid:
		return "cyan"
	case outcome.UnknownResponse:
		return "yellow"
	default:
		return "red"
	}
}

func formatErrorRows(errs map[string]int64) []string {
	if len(errs) == 0 {
		return []string{"[No errors](fg:green)"}
	}
	rows := make([]metrics.CategoryCount, 0, len(errs))
	for name, n := range errs {
		rows = append(rows, metrics.CategoryCount{Label: name, Count: n})
	}
	metrics.SortBreakdown(rows)
	if len(rows) > 10 {
		rows = rows[:10]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", row.Label, row.Count))
	}
	return formatted
}

// formatRunParams formats the probe parameters for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", d.runConfig.Concurrency))
	}
	if d.runConfig.Total > 0 {
		parts = append(parts, fmt.Sprintf("Total: %d", d.runConfig.Total))
	}
	parts = append(parts, fmt.Sprintf("Stock: %d", d.runConfig.InitialStock))

	if d.runConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.runConfig.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.runConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.Timeout))
	}

	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
