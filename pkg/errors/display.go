// Package errors provides error formatting and display functions.
package errors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[90m"
	colorBold   = "\033[1m"
)

// Formatter handles error display with optional color support.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// Indent is the prefix for context and suggestion lines.
	Indent string
}

// DefaultFormatter returns a Formatter for standard error output.
// Color is enabled if stderr is a terminal.
func DefaultFormatter() *Formatter {
	return &Formatter{
		UseColor: IsTTY(os.Stderr),
		Writer:   os.Stderr,
		Indent:   "  ",
	}
}

// IsTTY returns true if the given file is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Format renders err for display. MesonErrors anywhere in the chain are
// shown with code, context, cause and suggestions.
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}

	me, ok := AsMesonError(err)
	if !ok {
		return f.paint(colorRed, "Error: ") + err.Error()
	}

	var sb strings.Builder
	sb.WriteString(f.paint(colorRed+colorBold, "ERROR"))
	sb.WriteString(f.paint(colorRed, " ["+me.Code+"]: "))
	sb.WriteString(me.Message)

	if me.HasContext() {
		for _, key := range me.contextKeys() {
			sb.WriteString("\n" + f.Indent + f.paint(colorYellow, key+": ") + me.Context[key])
		}
	}
	if me.Cause != nil {
		sb.WriteString("\n" + f.Indent + f.paint(colorDim, "cause: "+me.Cause.Error()))
	}
	for _, s := range me.Suggestions {
		sb.WriteString("\n" + f.Indent + f.paint(colorCyan, "→ "+s))
	}
	return sb.String()
}

func (f *Formatter) paint(color, s string) string {
	if !f.UseColor {
		return s
	}
	return color + s + colorReset
}

// Display writes a formatted error to the formatter's writer.
func (f *Formatter) Display(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(f.Writer, f.Format(err))
}

// Display writes a formatted error to stderr with default settings.
func Display(err error) {
	DefaultFormatter().Display(err)
}

// Sprint returns a formatted error string without colors.
func Sprint(err error) string {
	f := &Formatter{Writer: io.Discard, Indent: "  "}
	return f.Format(err)
}
