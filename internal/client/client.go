package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zombor/scanbridge/internal/invoker"
	"github.com/zombor/scanbridge/internal/protocol"
)

// Client drives the helper process. Calls are synchronous and serialized:
// each one spawns a single helper process and waits for it to exit.
type Client struct {
	helperPath string
	runner     invoker.Runner
	timeout    time.Duration
	logger     *slog.Logger

	mu sync.Mutex

	scan   *ScanClient
	export *ExportClient
	pdf    *PDFClient
	ocr    *OCRClient
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the process runner, mainly for tests.
func WithRunner(r invoker.Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithTimeout bounds every helper call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEnv adds environment variables to the helper process. It only
// applies to the default runner.
func WithEnv(env ...string) Option {
	return func(c *Client) {
		if e, ok := c.runner.(*invoker.Exec); ok {
			e.Env = append(e.Env, env...)
		}
	}
}

// New creates a Client for the helper at helperPath.
func New(helperPath string, opts ...Option) *Client {
	c := &Client{
		helperPath: helperPath,
		runner:     invoker.NewExec(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if e, ok := c.runner.(*invoker.Exec); ok && e.Logger == nil {
		e.Logger = c.logger
	}
	c.scan = &ScanClient{c: c}
	c.export = &ExportClient{c: c}
	c.pdf = &PDFClient{c: c}
	c.ocr = &OCRClient{c: c}
	return c
}

// Scan returns the scanning operations.
func (c *Client) Scan() *ScanClient { return c.scan }

// Export returns the image export operations.
func (c *Client) Export() *ExportClient { return c.export }

// PDF returns the PDF operations.
func (c *Client) PDF() *PDFClient { return c.pdf }

// OCR returns the OCR operations.
func (c *Client) OCR() *OCRClient { return c.ocr }

// call encodes cmd, runs the helper once and returns its stdout. Any
// failure before a zero exit is returned as an *Error.
func (c *Client) call(ctx context.Context, cmd protocol.Command) ([]byte, error) {
	op := cmd.Name()
	args, err := protocol.Encode(cmd)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrInvalidRequest, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The timeout covers the helper run, not the wait for the lock.
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("Calling helper", "op", op, "args", args)
	res, err := c.runner.Run(ctx, c.helperPath, args)
	if err != nil {
		var spawnErr *invoker.SpawnError
		switch {
		case errors.As(err, &spawnErr):
			return nil, &Error{Op: op, Kind: ErrSpawn, Err: err}
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			e := &Error{Op: op, Kind: ErrTimeout, Err: err}
			if res != nil {
				e.ExitCode = res.ExitCode
				e.Stderr = string(res.Stderr)
			}
			return nil, e
		default:
			return nil, &Error{Op: op, Kind: ErrHelperExecution, Err: err}
		}
	}

	if res.ExitCode != 0 {
		stderr := strings.TrimSpace(string(res.Stderr))
		msg := stderr
		if msg == "" {
			msg = strings.TrimSpace(string(res.Stdout))
		}
		c.logger.Warn("Helper failed", "op", op, "exit_code", res.ExitCode, "stderr", stderr)
		return nil, &Error{Op: op, Kind: ErrHelperExecution, Message: msg, ExitCode: res.ExitCode, Stderr: stderr}
	}
	return res.Stdout, nil
}
