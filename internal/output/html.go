package output

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

// htmlReportData contains all data needed for the HTML report template.
type htmlReportData struct {
	GeneratedAt      string
	Report           Report
	Throughput       float64
	HasThroughput    bool
	ThresholdsPassed int
}

var htmlReportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDuration": func(d time.Duration) string {
		return d.String()
	},
	"formatFloat": func(f float64) string {
		return fmt.Sprintf("%.2f", f)
	},
	"formatPercent": func(part, total int64) string {
		if total == 0 {
			return "0.0"
		}
		return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
	},
}).Parse(htmlTemplate))

// GenerateHTMLReport writes a standalone HTML page describing the run.
func GenerateHTMLReport(w io.Writer, r Report) error {
	data := htmlReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Report:      r,
	}
	data.Throughput, data.HasThroughput = r.Throughput()
	for _, res := range r.Thresholds {
		if res.Pass {
			data.ThresholdsPassed++
		}
	}

	if err := htmlReportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Seckill Probe Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1100px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #f97316 0%, #b91c1c 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #f97316;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .verdict { padding: 16px 20px; border-radius: 8px; margin-bottom: 12px; font-weight: 600; }
        .verdict.pass { background: #d1fae5; color: #065f46; }
        .verdict.fail { background: #fee2e2; color: #991b1b; font-size: 1.2rem; }
        .verdict.note { background: #fef3c7; color: #92400e; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 12px; border-bottom: 1px solid #e5e7eb; }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
        }
        .badge { display: inline-block; padding: 4px 12px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Seckill Probe Report</h1>
            <div class="meta">{{.Report.Method}} {{.Report.Target}}</div>
            <div class="meta">Generated: {{.GeneratedAt}}{{if .Report.RunID}} | Run: {{.Report.RunID}}{{end}} | Elapsed: {{formatDuration .Report.Stats.Duration}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Attempts</h3>
                    <div class="value">{{.Report.Expected}}</div>
                    <div class="subvalue">concurrency {{.Report.Concurrency}}</div>
                </div>
                <div class="card success">
                    <h3>Successful</h3>
                    <div class="value">{{.Report.Stats.Successes}}</div>
                    <div class="subvalue">stock {{.Report.InitialStock}}</div>
                </div>
                <div class="card">
                    <h3>Sold Out / Invalid</h3>
                    <div class="value">{{.Report.Stats.SoldOutOrInvalid}}</div>
                    <div class="subvalue">{{formatPercent .Report.Stats.SoldOutOrInvalid .Report.Stats.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Errors</h3>
                    <div class="value">{{.Report.Stats.Failures}}</div>
                    <div class="subvalue">{{formatPercent .Report.Stats.Failures .Report.Stats.Total}}%</div>
                </div>
                {{if .HasThroughput}}
                <div class="card">
                    <h3>Throughput</h3>
                    <div class="value">{{formatFloat .Throughput}}</div>
                    <div class="subvalue">req/s</div>
                </div>
                {{end}}
            </div>

            <div class="section">
                <h2>Verdicts</h2>
                {{if .Report.Stock.Oversold}}
                <div class="verdict fail">{{.Report.Stock.Message}}</div>
                {{else if eq .Report.Stock.Successes .Report.Stock.InitialStock}}
                <div class="verdict pass">{{.Report.Stock.Message}}</div>
                {{else}}
                <div class="verdict note">{{.Report.Stock.Message}}</div>
                {{end}}
                {{if .Report.Totals.OK}}
                <div class="verdict pass">Count check: {{.Report.Totals.Message}}</div>
                {{else}}
                <div class="verdict note">Count check: {{.Report.Totals.Message}}</div>
                {{end}}
            </div>

            <div class="section">
                <h2>Outcome Breakdown</h2>
                <table>
                    <thead>
                        <tr><th>Outcome</th><th>Count</th><th>Share</th></tr>
                    </thead>
                    <tbody>
                        {{range .Report.Stats.Breakdown}}
                        <tr>
                            <td>{{.Label}}</td>
                            <td>{{.Count}}</td>
                            <td>{{formatPercent .Count $.Report.Stats.Total}}%</td>
                        </tr>
                        {{else}}
                        <tr><td colspan="3"><em>No attempts recorded</em></td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            <div class="section">
                <h2>Latency</h2>
                <table>
                    <tbody>
                        <tr><td>Min</td><td>{{formatDuration .Report.Stats.MinLatency}}</td></tr>
                        <tr><td>Mean</td><td>{{formatDuration .Report.Stats.MeanLatency}}</td></tr>
                        <tr><td>P50</td><td>{{formatDuration .Report.Stats.P50Latency}}</td></tr>
                        <tr><td>P90</td><td>{{formatDuration .Report.Stats.P90Latency}}</td></tr>
                        <tr><td>P95</td><td>{{formatDuration .Report.Stats.P95Latency}}</td></tr>
                        <tr><td>P99</td><td>{{formatDuration .Report.Stats.P99Latency}}</td></tr>
                        <tr><td>Max</td><td>{{formatDuration .Report.Stats.MaxLatency}}</td></tr>
                    </tbody>
                </table>
            </div>

            {{if .Report.Stats.Errors}}
            <div class="section">
                <h2>Error Causes</h2>
                <table>
                    <thead><tr><th>Cause</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range $name, $count := .Report.Stats.Errors}}
                        <tr><td>{{$name}}</td><td>{{$count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdsPassed}}/{{len .Report.Thresholds}} Passed)</h2>
                <table>
                    <thead>
                        <tr><th>Threshold</th><th>Actual</th><th>Status</th></tr>
                    </thead>
                    <tbody>
                        {{range .Report.Thresholds}}
                        <tr>
                            <td>{{.Raw}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
