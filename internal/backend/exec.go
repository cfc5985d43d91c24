package backend

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// captureOutput runs command through the shell and returns its
// trimmed stdout. Used only for read-only status probes (squeue)
// where task.Task's discard-stdout policy would lose the answer.
func captureOutput(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func nonEmptyLines(s string) []string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
