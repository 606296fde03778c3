package picker

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoSelection reports that the user dismissed the picker without choosing
// a line. Callers treat it as a normal exit signal, not a failure.
var ErrNoSelection = errors.New("no selection")

// Select hands the display lines to fzf on stdin and returns the chosen
// line. fzf owns the terminal while it runs; escape or ctrl-c comes back as
// ErrNoSelection.
func Select(lines []string) (string, error) {
	if len(lines) == 0 {
		return "", ErrNoSelection
	}
	if _, err := exec.LookPath("fzf"); err != nil {
		return "", fmt.Errorf("fzf not found in PATH: %w", err)
	}

	cmd := exec.Command("fzf", "--prompt=Select Article > ")
	cmd.Stdin = strings.NewReader(strings.Join(lines, "\n"))
	cmd.Stderr = os.Stderr

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrNoSelection
		}
		return "", fmt.Errorf("running fzf: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}
