package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestFraction(t *testing.T) {
	tests := []struct {
		state    BatchState
		expected float64
	}{
		{BatchState{Total: 0}, 1.0},
		{BatchState{Total: 10, Done: 0}, 0.0},
		{BatchState{Total: 10, Done: 5}, 0.5},
		{BatchState{Total: 10, Done: 7, Failed: 3}, 1.0},
	}

	for _, tt := range tests {
		result := fraction(tt.state)
		if result != tt.expected {
			t.Errorf("fraction(%+v) = %v; want %v", tt.state, result, tt.expected)
		}
	}
}

func TestTallyLine(t *testing.T) {
	line := tallyLine(BatchState{Total: 5, Done: 2, Failed: 1})
	if line != "Files: 3/5 | Failed: 1" {
		t.Errorf("unexpected tally line: %q", line)
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path     string
		max      int
		expected string
	}{
		{"short.txt", 40, "short.txt"},
		{"/very/long/path/to/some/file.txt", 10, "...ile.txt"},
		{"abc", 2, "abc"},
	}

	for _, tt := range tests {
		result := truncatePath(tt.path, tt.max)
		if result != tt.expected {
			t.Errorf("truncatePath(%q, %d) = %q; want %q", tt.path, tt.max, result, tt.expected)
		}
	}
}

func TestQuitKeysAbortRunningBatch(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	}

	for _, key := range keys {
		aborted := false
		m := NewModel(BatchState{Total: 3, Done: 1}).WithAbort(func() { aborted = true })

		_, cmd := m.Update(key)

		if !aborted {
			t.Errorf("expected %q to abort the running batch", key.String())
		}
		if cmd == nil {
			t.Fatalf("expected a quit command for %q, got nil", key.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("expected tea.QuitMsg for %q", key.String())
		}
	}
}

func TestQuitAfterFinishDoesNotAbort(t *testing.T) {
	aborted := false
	m := NewModel(BatchState{Total: 2, Done: 2, Finished: true}).WithAbort(func() { aborted = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if aborted {
		t.Error("exiting the view after the batch finished must not fire the abort")
	}
	if cmd == nil {
		t.Fatal("expected a quit command, got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModelInitialization(t *testing.T) {
	model := NewModel(BatchState{Total: 3})

	if model.state.Total != 3 {
		t.Errorf("Expected Total 3, got %d", model.state.Total)
	}

	view := model.View()
	if view == "" {
		t.Errorf("View rendered empty string")
	}

	if !strings.Contains(view, "Initializing...") {
		t.Errorf("Expected Initializing view when width is 0")
	}
}
