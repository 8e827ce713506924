package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amansuggest/internal/api"
	"github.com/Aman-CERP/amansuggest/internal/suggest"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Loading projects...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Loading projects...\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Icons(t *testing.T) {
	tests := []struct {
		name  string
		print func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Successf("Indexed %d files", 3) }, "✅ Indexed 3 files"},
		{"warning", func(w *Writer) { w.Warningf("project %s missing", "p1") }, "⚠️  project p1 missing"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "boom") }, "❌ failed: boom"},
		{"statusf", func(w *Writer) { w.Statusf("📂", "Found %d in %s", 42, "/src") }, "📂 Found 42 in /src"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.print(New(buf))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestWriter_Code_IndentsLines(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("a: 1\nb: 2")

	assert.Equal(t, "\n  a: 1\n  b: 2\n\n", buf.String())
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Newline()

	assert.Equal(t, "\n", buf.String())
}

func TestNew_NoColorForBuffers(t *testing.T) {
	// Given/When: a writer on a non-terminal
	w := New(&bytes.Buffer{})

	// Then: colour is off
	assert.False(t, w.useColor)
}

func TestWriter_Suggestions(t *testing.T) {
	// Given: a reply with scores, projects and timing
	score := 12.0
	ms := int64(3)
	reply := api.Reply{
		Suggestions: []api.Suggestion{
			{Phrase: "parse", Projects: []string{"p1", "p2"}, Score: &score},
			{Phrase: "parser"},
		},
		TimeMillis: &ms,
	}
	buf := &bytes.Buffer{}

	// When: printing
	New(buf).Suggestions("par", reply)

	// Then: every part appears uncoloured
	out := buf.String()
	assert.Contains(t, out, " 1. parse  12  [p1, p2]\n")
	assert.Contains(t, out, " 2. parser\n")
	assert.Contains(t, out, "(3 ms)")
	assert.NotContains(t, out, "\033[")
}

func TestWriter_Suggestions_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Suggestions("zz", api.Reply{})

	assert.Contains(t, buf.String(), `No suggestions for "zz"`)
}

func TestWriter_SuggesterStatus(t *testing.T) {
	// Given: a ready suggester with a schedule
	next := time.Now().Add(time.Hour)
	last := time.Now()
	st := suggest.Status{
		State:           suggest.Ready,
		Enabled:         true,
		ProjectsEnabled: true,
		Projects:        2,
		RebuildCron:     "0 * * * *",
		NextRebuild:     &next,
		LastBuild:       &last,
		LastBuildTime:   1500 * time.Millisecond,
	}
	buf := &bytes.Buffer{}

	// When: printing
	New(buf).SuggesterStatus(st)

	// Then: state, projects, schedule and last build are listed
	out := buf.String()
	assert.Contains(t, out, "State:       ready")
	assert.Contains(t, out, "Projects:    2")
	assert.Contains(t, out, "Rebuild:     0 * * * * (next ")
	assert.Contains(t, out, "(1.5s)")
}

func TestWriter_SuggesterStatus_ScheduleOff(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).SuggesterStatus(suggest.Status{State: suggest.Uninitialized, ScheduleDisabled: true})

	out := buf.String()
	assert.Contains(t, out, "Rebuild:     off")
	assert.Contains(t, out, "scheduling failure")
	assert.NotContains(t, out, "Projects:")
}
