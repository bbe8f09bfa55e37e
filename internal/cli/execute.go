package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute(ctx context.Context, version string) int {
	root := NewRootCommand(version)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errAnalysisFailed) {
			badColor.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		}
		return 1
	}
	return 0
}

// describeError prefers the server's message for domain errors.
func describeError(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return fmt.Sprintf("%s (%s)", de.Message, de.Code)
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		for field, msg := range ve.Fields {
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	return err.Error()
}
