// File: cmd/fsdeploy/confirm.go
// Brief: Interactive confirmation prompt with TTY detection.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func approvedFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("FSDEPLOY_YES"))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// confirm asks the user to approve an action. Pre-approval comes from --yes
// or FSDEPLOY_YES; without either, a prompt requires an interactive terminal.
func confirm(cmd *cobra.Command, prompt string, yes, nonInteractive bool) (bool, error) {
	if yes || approvedFromEnv() {
		return true, nil
	}
	if nonInteractive {
		return false, fmt.Errorf("--non-interactive requires --yes")
	}
	in := cmd.InOrStdin()
	out := cmd.ErrOrStderr()
	if !isTerminal(in) || !isTerminal(out) {
		return false, fmt.Errorf("no interactive terminal; pass --yes to approve")
	}
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
