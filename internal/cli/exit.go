package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ExitError ends a command with Code without printing anything further;
// the command has already reported the outcome.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs cmd and returns the process exit status. Errors other than
// ExitError and cancellation are printed to stderr.
func Execute(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "%s: %v\n", cmd.Name(), err)
	}
	return 1
}
