package api

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/sirupsen/logrus"
)

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"litres": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"pct":    func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"height": func(v, capacity float64) string {
		if capacity <= 0 {
			return "0"
		}
		return fmt.Sprintf("%.2f", v/capacity*100)
	},
	"stamp": func(ev entities.FlowEvent) string { return ev.Timestamp.Format("2006-01-02 15:04:05") },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2">
<title>Reservoir simulator</title>
<style>
body { font-family: Arial, sans-serif; max-width: 600px; margin: auto; }
.gauge { position: relative; width: 150px; height: 300px; border: 2px solid #333; margin: 10px auto; }
.water { position: absolute; bottom: 0; width: 100%; background: #3498db; }
.mark { position: absolute; width: 100%; border-top: 2px dashed; }
.high { border-color: red; }
.low { border-color: orange; }
.alerts { color: red; }
</style>
</head>
<body>
<h1>Reservoir management</h1>
<div class="gauge">
  <div class="water" style="height: {{height .State.Level .State.Capacity}}%"></div>
  <div class="mark high" style="bottom: {{height .State.HighThreshold .State.Capacity}}%"></div>
  <div class="mark low" style="bottom: {{height .State.LowThreshold .State.Capacity}}%"></div>
</div>
<p id="percent">{{pct .State.Percent}} %</p>
<p id="level">Level: {{litres .State.Level}} L / {{litres .State.Capacity}} L</p>
<p id="alerts" class="alerts">Alerts: {{.State.AlertCount}}</p>
<p id="totals">In: {{litres .State.CumulativeInflow}} L, out: {{litres .State.CumulativeOutflow}} L</p>
<p id="status">{{if .State.Running}}running{{else}}paused{{end}}</p>
{{if .Alert}}<p id="alert" class="alerts">{{.Alert}}</p>{{end}}
<h2>History (latest actions)</h2>
<table id="history">
<thead><tr><th>Date</th><th>Action</th><th>Volume (L)</th><th>Final level (L)</th></tr></thead>
<tbody>
{{range .Events}}<tr><td>{{stamp .}}</td><td>{{.Direction}}</td><td>{{litres .Volume}}</td><td>{{litres .ResultingLevel}}</td></tr>
{{end}}</tbody>
</table>
<footer>run {{.RunID}}</footer>
</body>
</html>
`))

// DashboardData is the content of one rendered dashboard page
type DashboardData struct {
	RunID  string
	State  entities.ReservoirState
	Alert  string
	Events []entities.FlowEvent
}

// RenderDashboard writes the HTML page for data to w
func RenderDashboard(w io.Writer, data DashboardData) error {
	return dashboardTemplate.Execute(w, data)
}

// DashboardWriter rewrites an HTML status page after every tick
type DashboardWriter struct {
	path    string
	runID   string
	history func() []entities.FlowEvent
	log     *logrus.Entry
}

// NewDashboardWriter creates a writer for path; history supplies the rows to show
func NewDashboardWriter(path, runID string, history func() []entities.FlowEvent) *DashboardWriter {
	return &DashboardWriter{
		path:    path,
		runID:   runID,
		history: history,
		log:     logrus.WithField("component", "dashboard"),
	}
}

// HandleTick renders the page for result. Write failures are logged.
func (d *DashboardWriter) HandleTick(result entities.TickResult) {
	data := DashboardData{RunID: d.runID, State: result.State}
	if result.Alert != entities.AlertNone {
		data.Alert = result.Alert.Message(result.State.Level)
	}
	if d.history != nil {
		data.Events = d.history()
	}
	if err := d.Write(data); err != nil {
		d.log.Warnf("Warning: failed to write dashboard: %v", err)
	}
}

// Write renders data to a temporary file and renames it over the target
func (d *DashboardWriter) Write(data DashboardData) error {
	var buf bytes.Buffer
	if err := RenderDashboard(&buf, data); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}

	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, ".dashboard-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write dashboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close dashboard: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("failed to replace dashboard: %w", err)
	}
	return nil
}
