package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/tracking"
)

// LookupContract submits a contract number and intercepts the backend
// endpoint's asynchronous response instead of parsing rendered text. The
// driver decodes base64-marked bodies during retrieval.
func (e *Engine) LookupContract(ctx context.Context, number string) (*tracking.ContractPayload, error) {
	tabCtx, cleanup, err := e.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session (%v): %w", err, ErrDriver)
	}
	defer cleanup()

	callID := shortCallID()
	log := e.logger.With(zap.String("call_id", callID), zap.String("contract", number))

	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	// Capture must be live before navigation or the response can be missed.
	capture := newResponseCapture(e.cfg.ContractEndpoint)
	chromedp.ListenTarget(tabCtx, capture.onEvent)

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(e.cfg.TrackingURL),
		chromedp.Sleep(e.cfg.InitialSettle),
	); err != nil {
		return nil, fmt.Errorf("navigate tracking page (%v): %w", err, ErrDriver)
	}

	e.dismissOverlays(tabCtx, log)

	inputXP, err := e.locateInput(tabCtx, callID, log)
	if err != nil {
		return nil, err
	}
	if err := e.enterValue(tabCtx, inputXP, number, callID, log); err != nil {
		return nil, err
	}
	if err := e.submit(tabCtx, inputXP, callID, log); err != nil {
		return nil, err
	}

	requestID, ok := capture.wait(tabCtx, e.cfg.InterceptWindow)
	if !ok {
		log.Warn("backend endpoint response never appeared",
			zap.String("endpoint", e.cfg.ContractEndpoint),
		)
		e.screenshot(tabCtx, callID, "no_interception", log)
		return nil, ErrNoInterception
	}

	body, err := e.fetchResponseBody(tabCtx, requestID)
	if err != nil {
		return nil, fmt.Errorf("fetch intercepted body (%v): %w", err, ErrDriver)
	}

	var payload tracking.ContractPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		fault := ClassifyRawBody(string(body))
		log.Warn("contract body is not JSON",
			zap.String("fault", string(fault.Kind)),
		)
		e.screenshot(tabCtx, callID, "contract_fault", log)
		return nil, fault
	}

	log.Info("contract payload intercepted", zap.Bool("found", payload.Data.Found))
	return &payload, nil
}

// fetchResponseBody pulls the raw body through the protocol-level retrieval
// call. The body may lag the response event, so retry briefly.
func (e *Engine) fetchResponseBody(ctx context.Context, requestID network.RequestID) ([]byte, error) {
	var body []byte
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		lastErr = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(requestID).Do(ctx)
			return err
		}))
		if lastErr == nil {
			return body, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// responseCapture records the first response whose URL matches the backend
// endpoint substring.
type responseCapture struct {
	mu        sync.Mutex
	match     string
	requestID network.RequestID
	seen      bool
}

func newResponseCapture(match string) *responseCapture {
	return &responseCapture{match: match}
}

func (c *responseCapture) onEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Response == nil {
		return
	}
	if c.match == "" || !strings.Contains(resp.Response.URL, c.match) {
		return
	}
	c.mu.Lock()
	if !c.seen {
		c.requestID = resp.RequestID
		c.seen = true
	}
	c.mu.Unlock()
}

func (c *responseCapture) snapshot() (network.RequestID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestID, c.seen
}

// wait polls captured events until a match appears or the window closes.
func (c *responseCapture) wait(ctx context.Context, window time.Duration) (network.RequestID, bool) {
	deadline := time.Now().Add(window)
	for {
		if id, ok := c.snapshot(); ok {
			return id, true
		}
		if time.Now().After(deadline) {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(250 * time.Millisecond):
		}
	}
}
