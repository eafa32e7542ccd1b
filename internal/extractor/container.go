package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/tracking"
)

// Anchor labels on the rendered results page. The value for each field is
// the line immediately following its anchor.
const (
	anchorLocation  = "Местонахождение"
	anchorAction    = "Действие"
	anchorCountry   = "Страна"
	anchorTimestamp = "Дата и время"
)

// LookupContainer opens a fresh browser session, submits the container id on
// the tracking page and parses the rendered result block.
func (e *Engine) LookupContainer(ctx context.Context, id string) (tracking.ContainerStatus, error) {
	tabCtx, cleanup, err := e.session(ctx)
	if err != nil {
		return tracking.ContainerStatus{}, fmt.Errorf("open session (%v): %w", err, ErrDriver)
	}
	defer cleanup()

	callID := shortCallID()
	log := e.logger.With(zap.String("call_id", callID), zap.String("container", id))

	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}()

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(e.cfg.TrackingURL),
		chromedp.Sleep(e.cfg.InitialSettle),
	); err != nil {
		return tracking.ContainerStatus{}, fmt.Errorf("navigate tracking page (%v): %w", err, ErrDriver)
	}

	e.dismissOverlays(tabCtx, log)

	inputXP, err := e.locateInput(tabCtx, callID, log)
	if err != nil {
		return tracking.ContainerStatus{}, err
	}
	if err := e.enterValue(tabCtx, inputXP, id, callID, log); err != nil {
		return tracking.ContainerStatus{}, err
	}
	if err := e.submit(tabCtx, inputXP, callID, log); err != nil {
		return tracking.ContainerStatus{}, err
	}

	body := e.waitForResults(tabCtx, callID, log)

	status, err := parseStatus(id, body)
	if err != nil {
		e.screenshot(tabCtx, callID, "parse_failed", log)
		return tracking.ContainerStatus{}, err
	}
	log.Info("container extracted",
		zap.String("location", status.Location),
		zap.String("action", status.Action),
	)
	return status, nil
}

// dismissOverlays best-effort closes the cookie banner and any modal
// windows. Failure here is never fatal.
func (e *Engine) dismissOverlays(ctx context.Context, log *zap.Logger) {
	if err := bounded(ctx, e.cfg.OverlayTimeout,
		chromedp.Click(`//button[contains(text(), 'Принять')]`, chromedp.BySearch),
		chromedp.Sleep(time.Second),
	); err != nil {
		log.Debug("cookie banner not dismissed", zap.Error(err))
	}

	// Click the first visible close control of any modal, via the DOM so
	// overlapping elements cannot swallow the click.
	const closeModals = `(() => {
		const els = document.querySelectorAll('[class*="close"], [class*="Close"]');
		for (const el of els) {
			if (el.offsetParent !== null) { el.click(); return true; }
		}
		return false;
	})()`
	var clicked bool
	if err := bounded(ctx, e.cfg.OverlayTimeout, chromedp.Evaluate(closeModals, &clicked)); err != nil {
		log.Debug("modal dismissal skipped", zap.Error(err))
	}
}

// locateInput finds the query input. Primary strategy: the last text input
// on the page (the tracking form renders below earlier decorative inputs).
// Fallback: a structural XPath sweep. Both are bounded.
func (e *Engine) locateInput(ctx context.Context, callID string, log *zap.Logger) (string, error) {
	var nodes []*cdp.Node
	err := bounded(ctx, e.cfg.ElementTimeout,
		chromedp.Nodes(`input[type="text"]`, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err == nil && len(nodes) > 0 {
		xp := nodes[len(nodes)-1].FullXPath()
		err = bounded(ctx, e.cfg.ElementTimeout,
			chromedp.ScrollIntoView(xp),
			chromedp.WaitVisible(xp),
		)
		if err == nil {
			return xp, nil
		}
	}
	log.Warn("primary input locator failed", zap.Error(err))
	e.screenshot(ctx, callID, "css_locator_failed", log)

	var fallback []*cdp.Node
	if err := bounded(ctx, e.cfg.ElementTimeout,
		chromedp.Nodes(`//input[@type="text"]`, &fallback, chromedp.BySearch, chromedp.AtLeast(0)),
	); err != nil || len(fallback) == 0 {
		e.screenshot(ctx, callID, "xpath_locator_failed", log)
		return "", fmt.Errorf("both locator strategies exhausted: %w", ErrElementNotFound)
	}
	return fallback[len(fallback)-1].FullXPath(), nil
}

// enterValue clears the field and types the id. If the normal input path
// throws, fall back to a direct value assignment; the id travels as a CDP
// parameter, never interpolated into page script.
func (e *Engine) enterValue(ctx context.Context, inputXP, value, callID string, log *zap.Logger) error {
	err := bounded(ctx, e.cfg.ElementTimeout,
		chromedp.Clear(inputXP, chromedp.BySearch),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.SendKeys(inputXP, value, chromedp.BySearch),
	)
	if err == nil {
		return nil
	}
	log.Warn("keyboard input failed, assigning value directly", zap.Error(err))
	e.screenshot(ctx, callID, "sendkeys_failed", log)

	if err := bounded(ctx, e.cfg.ElementTimeout,
		chromedp.SetValue(inputXP, value, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("set input value (%v): %w", err, ErrElementNotFound)
	}
	return nil
}

// submit fires an Enter keypress; if that fails, click a submit control.
func (e *Engine) submit(ctx context.Context, inputXP, callID string, log *zap.Logger) error {
	err := bounded(ctx, e.cfg.ElementTimeout,
		chromedp.SendKeys(inputXP, kb.Enter, chromedp.BySearch),
	)
	if err == nil {
		return nil
	}
	log.Warn("enter keypress failed, clicking submit control", zap.Error(err))

	if err := bounded(ctx, e.cfg.ElementTimeout,
		chromedp.Click(`//button[contains(text(), 'Поиск')] | //button[@type='submit']`, chromedp.BySearch),
	); err != nil {
		e.screenshot(ctx, callID, "submit_failed", log)
		return fmt.Errorf("submit search (%v): %w", err, ErrSubmit)
	}
	return nil
}

// waitForResults is the content-stability gate: poll until the rendered body
// text passes the length threshold, then wait (bounded) for the anchor
// labels themselves, then apply the fixed settle delay. Timeouts here only
// degrade; parsing decides success.
func (e *Engine) waitForResults(ctx context.Context, callID string, log *zap.Logger) string {
	var body string
	readBody := func() {
		_ = bounded(ctx, 3*time.Second, chromedp.Text("body", &body, chromedp.ByQuery))
	}

	lengthDeadline := time.Now().Add(e.cfg.ElementTimeout)
	for {
		readBody()
		if len(body) > e.cfg.MinBodyLength || time.Now().After(lengthDeadline) {
			break
		}
		select {
		case <-ctx.Done():
			return body
		case <-time.After(500 * time.Millisecond):
		}
	}
	if len(body) <= e.cfg.MinBodyLength {
		log.Warn("body length threshold not reached")
		e.screenshot(ctx, callID, "results_timeout", log)
	}

	anchorDeadline := time.Now().Add(e.cfg.ElementTimeout)
	for !hasAllAnchors(body) && time.Now().Before(anchorDeadline) {
		select {
		case <-ctx.Done():
			return body
		case <-time.After(500 * time.Millisecond):
		}
		readBody()
	}

	_ = chromedp.Run(ctx, chromedp.Sleep(e.cfg.ResultSettle))
	readBody()
	return body
}

func hasAllAnchors(body string) bool {
	for _, anchor := range []string{anchorLocation, anchorAction, anchorCountry, anchorTimestamp} {
		if !strings.Contains(body, anchor) {
			return false
		}
	}
	return true
}

func shortCallID() string {
	return uuid.NewString()[:8]
}
