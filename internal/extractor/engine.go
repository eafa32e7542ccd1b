// Package extractor drives headless Chrome sessions against the source
// tracking site and turns rendered pages and intercepted backend responses
// into structured tracking data.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls the extraction engine.
type Config struct {
	TrackingURL string
	UserAgent   string
	// ContractEndpoint is the URL substring identifying the backend
	// asynchronous-data endpoint whose response the contract flow intercepts.
	ContractEndpoint string

	MaxParallel     int
	SessionTimeout  time.Duration
	ElementTimeout  time.Duration
	OverlayTimeout  time.Duration
	InitialSettle   time.Duration
	ResultSettle    time.Duration
	MinBodyLength   int
	InterceptWindow time.Duration

	ScreenshotsDir string
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 1
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 90 * time.Second
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = 10 * time.Second
	}
	if c.OverlayTimeout <= 0 {
		c.OverlayTimeout = 5 * time.Second
	}
	if c.InitialSettle <= 0 {
		c.InitialSettle = 4 * time.Second
	}
	if c.ResultSettle <= 0 {
		c.ResultSettle = 3 * time.Second
	}
	if c.MinBodyLength <= 0 {
		c.MinBodyLength = 100
	}
	if c.InterceptWindow <= 0 {
		c.InterceptWindow = 20 * time.Second
	}
}

// Engine owns a Chrome allocator and runs one isolated tab per lookup call.
type Engine struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates an Engine. The allocator is shared; each call gets a fresh
// isolated tab so no state leaks between requests.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.TrackingURL == "" {
		return nil, fmt.Errorf("tracking url is required")
	}
	cfg.applyDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Engine{
		cfg:         cfg,
		limiter:     make(chan struct{}, cfg.MaxParallel),
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close tears down the browser allocator.
func (e *Engine) Close() {
	e.allocCancel()
}

// session acquires a parallelism slot and opens a fresh tab context bounded
// by the per-call timeout. The returned cleanup releases both.
func (e *Engine) session(ctx context.Context) (context.Context, func(), error) {
	select {
	case e.limiter <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("extraction slot wait: %w", ctx.Err())
	}

	tabCtx, tabCancel := chromedp.NewContext(e.allocator)
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, e.cfg.SessionTimeout)

	stop := forwardCancel(ctx, timeoutCancel)
	cleanup := func() {
		stop()
		timeoutCancel()
		tabCancel()
		<-e.limiter
	}
	return tabCtx, cleanup, nil
}

// forwardCancel cancels the tab when the caller's context ends first.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// bounded runs actions under a sub-timeout of the session context.
func bounded(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	sub, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(sub, actions...)
}
