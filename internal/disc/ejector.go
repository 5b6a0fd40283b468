package disc

import (
	"context"
	"fmt"
	"strings"
)

// Ejector defines disc eject operations.
type Ejector interface {
	Eject(ctx context.Context, device string) error
}

type commandEjector struct {
	exec Executor
}

// NewEjector creates an ejector that shells out to the eject utility.
func NewEjector() Ejector {
	return NewEjectorWithExecutor(nil)
}

// NewEjectorWithExecutor allows injecting a custom executor for testing.
func NewEjectorWithExecutor(exec Executor) Ejector {
	if exec == nil {
		exec = commandExecutor{}
	}
	return commandEjector{exec: exec}
}

func (e commandEjector) Eject(ctx context.Context, device string) error {
	var args []string
	if device = strings.TrimSpace(device); device != "" {
		args = append(args, device)
	}
	if output, err := e.exec.Run(ctx, "eject", args); err != nil {
		if msg := strings.TrimSpace(string(output)); msg != "" {
			return fmt.Errorf("eject %s: %w (%s)", device, err, msg)
		}
		return fmt.Errorf("eject %s: %w", device, err)
	}
	return nil
}
