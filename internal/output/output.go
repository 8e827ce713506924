// Package output formats CLI output with optional colour.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiGreen = "\033[32m"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer. Colour is used only on a terminal with NO_COLOR
// unset.
func New(out io.Writer) *Writer {
	return &Writer{
		out:      out,
		useColor: isTerminal(out) && !noColor(),
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

func noColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

func (w *Writer) style(code, s string) string {
	if !w.useColor {
		return s
	}
	return code + s + ansiReset
}

// Status prints a message with an icon. Write errors are ignored for
// console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Suggestions prints a reply, one completion per line.
func (w *Writer) Suggestions(prefix string, reply api.Reply) {
	if len(reply.Suggestions) == 0 {
		w.Statusf("🔍", "No suggestions for %q", prefix)
		return
	}
	for i, s := range reply.Suggestions {
		line := fmt.Sprintf("%2d. %s", i+1, w.style(ansiBold, s.Phrase))
		if s.Score != nil {
			line += w.style(ansiDim, fmt.Sprintf("  %.0f", *s.Score))
		}
		if len(s.Projects) > 0 {
			line += w.style(ansiDim, "  ["+strings.Join(s.Projects, ", ")+"]")
		}
		_, _ = fmt.Fprintln(w.out, line)
	}
	if reply.TimeMillis != nil {
		_, _ = fmt.Fprintln(w.out, w.style(ansiDim, fmt.Sprintf("(%d ms)", *reply.TimeMillis)))
	}
}

// SuggesterStatus prints the suggester part of a status report.
func (w *Writer) SuggesterStatus(st suggest.Status) {
	state := st.State.String()
	if st.State == suggest.Ready {
		state = w.style(ansiGreen, state)
	}
	w.field("State", state)
	w.field("Enabled", fmt.Sprintf("%t", st.Enabled))
	if st.ProjectsEnabled {
		w.field("Projects", fmt.Sprintf("%d", st.Projects))
	}
	switch {
	case st.RebuildCron == "":
		w.field("Rebuild", "off")
	case st.NextRebuild != nil:
		w.field("Rebuild", fmt.Sprintf("%s (next %s)", st.RebuildCron, st.NextRebuild.Local().Format(time.DateTime)))
	default:
		w.field("Rebuild", st.RebuildCron)
	}
	if st.ScheduleDisabled {
		w.Warning("Automatic rebuild disabled after a scheduling failure")
	}
	if st.LastBuild != nil {
		w.field("Last build", fmt.Sprintf("%s (%s)",
			st.LastBuild.Local().Format(time.DateTime), st.LastBuildTime.Round(time.Millisecond)))
	}
}

func (w *Writer) field(name, value string) {
	_, _ = fmt.Fprintf(w.out, "   %-12s %s\n", name+":", value)
}
