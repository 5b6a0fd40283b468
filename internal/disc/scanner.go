package disc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Executor abstracts command execution for the scanner.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// commandExecutor executes commands using os/exec. cdparanoia writes its
// report to stderr, so both streams are captured.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Scanner queries the table of contents of the disc in a drive.
type Scanner struct {
	binary string
	exec   Executor
}

// NewScanner constructs a Scanner for the provided cdparanoia binary.
func NewScanner(binary string) *Scanner {
	return NewScannerWithExecutor(binary, nil)
}

// NewScannerWithExecutor allows injecting a custom executor for testing.
func NewScannerWithExecutor(binary string, exec Executor) *Scanner {
	if exec == nil {
		exec = commandExecutor{}
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "cdparanoia"
	}
	return &Scanner{binary: binary, exec: exec}
}

// Scan runs `cdparanoia -Q` against device and parses the result.
func (s *Scanner) Scan(ctx context.Context, device string) (*TOC, error) {
	args := []string{"-Q"}
	if device = strings.TrimSpace(device); device != "" {
		args = append(args, "-d", device)
	}
	output, runErr := s.exec.Run(ctx, s.binary, args)
	toc, parseErr := ParseTOC(output)
	if parseErr == nil {
		return toc, nil
	}
	if runErr != nil {
		if errors.Is(parseErr, ErrNoDisc) {
			return nil, fmt.Errorf("query toc on %s: %w: %w", device, ErrNoDisc, runErr)
		}
		return nil, fmt.Errorf("query toc on %s: %w", device, runErr)
	}
	return nil, fmt.Errorf("query toc on %s: %w", device, parseErr)
}
