package api

import (
	"fmt"
	"io"
	"math"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

var (
	alertStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E67E22"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	inflowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498DB"))
	outflowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
)

// gaugeScale is the bar resolution; the gauge shows the fill ratio in permille
const gaugeScale = 1000

// ConsoleDisplay renders the reservoir as a terminal gauge
type ConsoleDisplay struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewConsoleDisplay creates a gauge and draws the initial state
func NewConsoleDisplay(out io.Writer, initial entities.ReservoirState) *ConsoleDisplay {
	d := &ConsoleDisplay{
		out: out,
		bar: progressbar.NewOptions64(gaugeScale,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "|",
				BarEnd:        "|",
			}),
		),
	}
	d.draw(initial)
	return d
}

// HandleTick redraws the gauge and prints the event and any alert
func (d *ConsoleDisplay) HandleTick(result entities.TickResult) {
	if ev := result.Event; ev != nil {
		style := inflowStyle
		if ev.Direction == entities.DirectionOutflow {
			style = outflowStyle
		}
		fmt.Fprintf(d.out, "\n%s %s %6.1f L → %7.1f L\n",
			mutedStyle.Render(ev.Timestamp.Format("15:04:05")),
			style.Render(fmt.Sprintf("%-7s", ev.Direction.Label())),
			ev.Volume, ev.ResultingLevel)
	}
	if result.StorageErr != nil {
		fmt.Fprintf(d.out, "\n%s\n", warnStyle.Render("Warning: history not saved: "+result.StorageErr.Error()))
	}
	if result.Alert != entities.AlertNone {
		fmt.Fprintf(d.out, "\n%s\n", alertStyle.Render("ALERT: "+result.Alert.Message(result.State.Level)))
	}
	d.draw(result.State)
}

// Notice prints an informational line
func (d *ConsoleDisplay) Notice(text string) {
	fmt.Fprintf(d.out, "\n%s\n", mutedStyle.Render(text))
}

// draw restarts the bar on every frame: a progressbar stops rendering once it
// reaches its max and cannot move backwards from there.
func (d *ConsoleDisplay) draw(s entities.ReservoirState) {
	d.bar.Reset()
	_ = d.bar.Set64(fillPermille(s))
	d.bar.Describe(fmt.Sprintf("%5.1f %% | Level: %.2f L / %.0f L | Alerts: %d",
		s.Percent(), s.Level, s.Capacity, s.AlertCount))
}

func fillPermille(s entities.ReservoirState) int64 {
	if s.Capacity <= 0 {
		return 0
	}
	ratio := math.Max(0, math.Min(s.Level/s.Capacity, 1))
	return int64(math.Round(ratio * gaugeScale))
}
