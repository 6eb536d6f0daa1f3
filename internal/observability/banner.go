package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

// termMu synchronizes ALL terminal output so that the status line can never
// be interleaved with a log write.
var termMu sync.Mutex

// ------------------------------------------------------------
// Utility
// ------------------------------------------------------------

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output.
// ------------------------------------------------------------

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() io.Writer {
	return termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

const banner = `
  ___  _  _ ___  ___   _   ___ ___  _ __   __
 / _ \| \| | _ )/ _ \ /_\ | _ \   \| |\ \ / /
| (_) | .' | _ \ (_) / _ \|   / |) | |_\ V /
 \___/|_|\_|___/\___/_/ \_\_|_\___/|____|_|

     >> guided tours for any web page <<
`

// PrintBanner writes the banner centred to the terminal width.
func PrintBanner(w io.Writer) {
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := max((width-runewidth.StringWidth(l))/2, 0)
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// ------------------------------------------------------------
// Live Status
// ------------------------------------------------------------

// FormatStatus renders a one-line summary of s, without colours.
func FormatStatus(s StatusSnapshot) string {
	tourID := s.TourID
	if tourID == "" {
		tourID = "-"
	}
	if runewidth.StringWidth(tourID) > 24 {
		tourID = runewidth.Truncate(tourID, 24, "...")
	}

	step := "waiting"
	if s.StepID != "" {
		step = fmt.Sprintf("%d/%d %s", s.StepIndex+1, s.Total, s.StepID)
	}

	barWidth := 20
	filled := 0
	if s.Total > 0 {
		done := s.StepIndex + 1
		if s.Phase == PhaseIdle {
			done = 0
		}
		filled = clamp(done*barWidth/s.Total, 0, barWidth)
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)

	return fmt.Sprintf("[%s] %-9s %s | %s | %s | errors:%d | up %v",
		s.LastAt.Format("15:04:05"), s.Phase, tourID, step, bar, s.Errors,
		time.Since(startTime).Round(time.Second))
}

// PrintLiveStatus rewrites the current terminal line with the status.
func PrintLiveStatus(w io.Writer, s *Status) {
	snap := s.Snapshot()
	color := colorNeonCyan
	switch snap.Phase {
	case PhaseSkipped:
		color = colorNeonMag
	case PhaseIdle:
		color = colorPurple
	}
	line := fmt.Sprintf("\r\033[K%s%s%s", color, FormatStatus(snap), colorReset)

	termMu.Lock()
	fmt.Fprint(w, line)
	termMu.Unlock()
}
