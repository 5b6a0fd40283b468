package paranoia

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"securerip/internal/logging"
)

// ReadRequest describes one read of a track (or the whole disc) into a file.
type ReadRequest struct {
	Track         int
	Trial         int
	StartSector   int64
	LengthSectors int64
	// ToEnd reads until the end of the disc instead of LengthSectors. Some
	// drives misbehave when asked for the exact end of the last track.
	ToEnd bool
	// LastOrImage marks reads that touch the tail of the disc.
	LastOrImage   bool
	Device        string
	OffsetSamples int
	Options       []string
	OutputPath    string
	Verbose       bool
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger routes tool output to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMultipleDriveSupport controls whether -d is passed. Ports without
// device selection always read from the default drive.
func WithMultipleDriveSupport(enabled bool) Option {
	return func(c *Client) {
		c.multiDrive = enabled
	}
}

// Client wraps cdparanoia reads.
type Client struct {
	binary     string
	exec       Executor
	logger     *slog.Logger
	multiDrive bool
}

// New constructs a cdparanoia client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("cdparanoia binary required")
	}
	client := &Client{
		binary:     binary,
		exec:       commandExecutor{},
		logger:     logging.NewNop(),
		multiDrive: true,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Read runs one cdparanoia read described by req.
func (c *Client) Read(ctx context.Context, req ReadRequest) error {
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path required")
	}
	args := c.Args(req)
	logger := c.logger.With(logging.Int(logging.FieldTrack, req.Track), logging.Int(logging.FieldTrial, req.Trial))
	logger.Debug("launching cdparanoia", logging.String("command", c.binary+" "+strings.Join(args, " ")))

	onOutput := func(line string) {
		if req.Verbose {
			logger.Info("cdparanoia", logging.String("output", line))
			return
		}
		logger.Debug("cdparanoia", logging.String("output", line))
	}
	if err := c.exec.Run(ctx, c.binary, args, onOutput); err != nil {
		return fmt.Errorf("cdparanoia read track %d trial %d: %w", req.Track, req.Trial, err)
	}
	return nil
}

// Args builds the cdparanoia argument vector for req.
func (c *Client) Args(req ReadRequest) []string {
	args := make([]string, 0, len(req.Options)+8)
	for _, opt := range req.Options {
		// -Z combined with an offset breaks reads at the end of the disc.
		if opt == "-Z" && req.OffsetSamples != 0 && req.LastOrImage {
			continue
		}
		args = append(args, opt)
	}

	span := "[." + strconv.FormatInt(req.StartSector, 10) + "]-"
	if !req.ToEnd {
		length := req.LengthSectors - 1
		if length < 0 {
			length = 0
		}
		span += "[." + strconv.FormatInt(length, 10) + "]"
	}
	args = append(args, span)

	if c.multiDrive && strings.TrimSpace(req.Device) != "" {
		args = append(args, "-d", strings.TrimSpace(req.Device))
	}
	args = append(args, "-O", strconv.Itoa(req.OffsetSamples))
	args = append(args, req.OutputPath)
	return args
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	// cdparanoia redraws its progress meter with carriage returns.
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Split(scanLinesOrReturns)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && onOutput != nil {
				onOutput(line)
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

func scanLinesOrReturns(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
