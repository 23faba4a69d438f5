package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rahul/postsync/internal/store"
	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var spinnerFrames = []string{"◜", "◝", "◞", "◟"}
var spinnerIdx = 0

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output.
// Every log.Println call will go through this writer, ensuring
// the cursor is safely inside the scroll region before writing.
// ------------------------------------------------------------

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
    ____  ____  ___________________  ___  _______
   / __ \/ __ \/ ___/_  __/ ___/\ \/ / |/ / ____/
  / /_/ / / / /\__ \ / /  \__ \  \  /    / /
 / ____/ /_/ /___/ // /  ___/ /  / / /| / /___
/_/    \____//____//_/  /____/  /_/_/ |_\____/

        >> LIVE FEED SYNC DASHBOARD <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")

	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Header/Logo area: 1-9
	// Dashboard/Status: 10
	// Gap: 11
	// Scrolling Logs: 12+
	fmt.Print("\033[12;r")  // Set scrolling region from line 12 to the bottom
	fmt.Print("\033[12;1H") // Move cursor to the start of the scrolling region
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// ------------------------------------------------------------
// Live Status
// ------------------------------------------------------------

func PrintLiveStatus() {
	st := GetStatus()
	uptime := time.Since(startTime).Round(time.Second)

	// Pulse Logic
	pulseIcon := "🔴"
	pulseText := "OFFLINE"
	pulseColor := colorNeonMag

	delta := time.Since(st.LastHeartbeat)

	if delta < 40*time.Second {
		pulseIcon = "🟢"
		pulseText = "HEALTHY"
		pulseColor = colorNeonCyan
	} else if delta < 90*time.Second {
		pulseIcon = "🟡"
		pulseText = "LAGGING"
		pulseColor = colorPurple
	}

	// Phase Icon
	icon := "💤"
	phaseColor := colorReset

	switch st.Phase {
	case PhaseFetching:
		icon = "🛰️"
		phaseColor = colorNeonCyan
	case PhasePersisting:
		icon = "💾"
		phaseColor = colorNeonMag
	}

	// Spinner Animation
	spinner := " "
	if st.Phase != PhaseIdle {
		spinner = spinnerFrames[spinnerIdx]
		spinnerIdx = (spinnerIdx + 1) % len(spinnerFrames)
	}

	// Message Truncation
	message := st.Message
	if message == "" {
		message = "Waiting..."
	}
	message = truncate(message, 32)

	// Progress Bar
	barWidth := 20
	filled := clamp(st.Progress*barWidth/100, 0, barWidth)

	bar := strings.Repeat("█", filled) +
		strings.Repeat("▒", barWidth-filled)

	// Build the status string BEFORE locking, to minimise lock hold time.
	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] %s%s %-7s%s | [%s%s %-10s%s] [%s%s%s] [%s%s %3d%%%s] [%d rows] %-32s [%v]\033[u",
		colorReset,
		st.LastHeartbeat.Format("15:04:05"),
		pulseColor, pulseIcon, pulseText, colorReset,
		phaseColor, icon, st.Phase, colorReset,
		colorPurple, spinner, colorReset,
		colorNeonCyan, bar, st.Progress, colorReset,
		st.RowCount,
		message,
		uptime,
	)

	// Lock, write the ENTIRE escape sequence atomically, unlock.
	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}

// ------------------------------------------------------------
// Snapshot Table
// ------------------------------------------------------------

// RenderTable prints the delivered record set into the scrolling log
// region, one row per post.
func RenderTable(posts []store.Post) {
	width := termWidth()
	bodyWidth := clamp(width-46, 10, 60)

	var b strings.Builder
	fmt.Fprintf(&b, "%s%-6s %-28s %s%s\n", colorNeonCyan, "ID", "TITLE", "BODY", colorReset)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", clamp(width-1, 40, 100)))
	for _, p := range posts {
		title := truncate(strings.ReplaceAll(p.Title, "\n", " "), 28)
		body := truncate(strings.ReplaceAll(p.Body, "\n", " "), bodyWidth)
		fmt.Fprintf(&b, "%-6d %-28s %s\n", p.ID, title, body)
	}

	termMu.Lock()
	fmt.Fprint(os.Stderr, b.String())
	termMu.Unlock()
}
