package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// screenshot captures a diagnostic image named after the call id and the
// failure stage. Best-effort: diagnostics must never fail the extraction.
func (e *Engine) screenshot(ctx context.Context, callID, stage string, log *zap.Logger) {
	if e.cfg.ScreenshotsDir == "" {
		return
	}
	var buf []byte
	if err := bounded(ctx, 5*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		log.Debug("screenshot capture failed", zap.String("stage", stage), zap.Error(err))
		return
	}
	if err := os.MkdirAll(e.cfg.ScreenshotsDir, 0o750); err != nil {
		log.Debug("screenshot dir", zap.Error(err))
		return
	}
	path := filepath.Join(e.cfg.ScreenshotsDir, fmt.Sprintf("%s_%s.png", callID, stage))
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		log.Debug("screenshot write failed", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("diagnostic screenshot captured", zap.String("path", path))
}
