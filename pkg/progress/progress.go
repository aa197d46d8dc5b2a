// Package progress reports how many ingestion jobs have finished.
//
// On a terminal the bar is redrawn in place; anywhere else each finished
// job is printed on its own line so logs stay readable.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	carriageReturn = "\r"
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"

	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorReset = "\033[0m"

	symbolSuccess = "✓"
	symbolFailure = "✗"

	barFilled = "█"
	barEmpty  = "░"
)

// Config holds configuration options for a Bar.
type Config struct {
	// Total is the number of jobs expected.
	Total int

	// Message is the text displayed before the bar.
	Message string

	// Width is the width of the bar in characters. Defaults to 20.
	Width int

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// IsTTY overrides terminal detection on Writer.
	IsTTY *bool
}

// Bar tracks finished jobs. It is safe for concurrent use.
type Bar struct {
	mu sync.Mutex

	config     Config
	isTTY      bool
	active     bool
	done       int
	failed     int
	startTime  time.Time
	lastOutput int
}

// New creates a bar for total jobs writing to stderr.
func New(total int, message string) *Bar {
	return NewWithConfig(Config{Total: total, Message: message})
}

// NewWithConfig creates a bar with custom configuration.
func NewWithConfig(config Config) *Bar {
	if config.Width <= 0 {
		config.Width = 20
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	isTTY := isTerminalWriter(config.Writer)
	if config.IsTTY != nil {
		isTTY = *config.IsTTY
	}

	return &Bar{config: config, isTTY: isTTY}
}

func isTerminalWriter(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Done returns the number of finished jobs, failed or not.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Failed returns the number of failed jobs.
func (b *Bar) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Start shows the empty bar. Calling Start twice is a no-op.
func (b *Bar) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active {
		return
	}
	b.active = true
	b.startTime = time.Now()

	if b.isTTY {
		fmt.Fprint(b.config.Writer, hideCursor)
		b.redraw(b.line())
	}
}

// Finished records one finished job. A nil err counts as success.
func (b *Bar) Finished(name string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done++
	if err != nil {
		b.failed++
	}

	if b.isTTY {
		if b.active {
			b.redraw(b.line())
		}
		return
	}

	symbol := symbolSuccess
	if err != nil {
		symbol = symbolFailure
	}
	fmt.Fprintf(b.config.Writer, "%s %s (%d/%d)\n", symbol, name, b.done, b.config.Total)
}

// Stop clears the bar and prints a one-line result.
func (b *Bar) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return
	}
	b.active = false

	symbol, color := symbolSuccess, colorGreen
	if b.failed > 0 {
		symbol, color = symbolFailure, colorRed
	}
	summary := fmt.Sprintf("%s: %d/%d ingested", b.config.Message, b.done-b.failed, b.config.Total)
	if b.failed > 0 {
		summary += fmt.Sprintf(", %d failed", b.failed)
	}
	elapsed := formatElapsed(time.Since(b.startTime))

	if b.isTTY {
		b.redraw("")
		fmt.Fprint(b.config.Writer, showCursor)
		fmt.Fprintf(b.config.Writer, "%s%s%s %s %s\n", color, symbol, colorReset, summary, elapsed)
		return
	}
	fmt.Fprintf(b.config.Writer, "%s %s %s\n", symbol, summary, elapsed)
}

// line renders "Message [████░░░░] (2/8) (1.2s)". Caller must hold mu.
func (b *Bar) line() string {
	var parts []string
	if b.config.Message != "" {
		parts = append(parts, b.config.Message)
	}
	parts = append(parts, b.bar())
	parts = append(parts, fmt.Sprintf("(%d/%d)", b.done, b.config.Total))
	if !b.startTime.IsZero() {
		parts = append(parts, formatElapsed(time.Since(b.startTime)))
	}
	return strings.Join(parts, " ")
}

// bar renders the bar portion. Caller must hold mu.
func (b *Bar) bar() string {
	width := b.config.Width
	filled := 0
	if b.config.Total > 0 {
		filled = b.done * width / b.config.Total
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled) + "]"
}

// redraw overwrites the previous line with output. Caller must hold mu.
func (b *Bar) redraw(output string) {
	if b.lastOutput > 0 {
		fmt.Fprint(b.config.Writer, carriageReturn+strings.Repeat(" ", b.lastOutput)+carriageReturn)
	}
	fmt.Fprint(b.config.Writer, output)
	b.lastOutput = len(output)
}

// formatElapsed shows "(1.2s)" or, from a minute on, "(1m 30s)".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("(%.1fs)", d.Seconds())
	}
	return fmt.Sprintf("(%dm %ds)", int(d.Minutes()), int(d.Seconds())%60)
}
