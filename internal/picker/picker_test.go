package picker

import (
	"errors"
	"testing"
)

func TestSelectEmptyLines(t *testing.T) {
	_, err := Select(nil)
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("expected ErrNoSelection for empty input, got %v", err)
	}
}

func TestSelectMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := Select([]string{"A | one"})
	if err == nil {
		t.Fatal("expected error when fzf is not installed")
	}
	if errors.Is(err, ErrNoSelection) {
		t.Error("missing binary must not look like a declined selection")
	}
}
