package producers

import (
	"time"

	"gss-go/internal/config"
	"gss-go/internal/gss"
)

// NewCaptureFactory returns a factory building a periodic sampler and a
// manual screenshot watcher for each session. A nil capturer disables
// automatic screenshots; an empty watch directory disables manual pickup.
func NewCaptureFactory(cfg config.SessionConfig, capturer Capturer, clock gss.Clock, logger gss.Logger) gss.CaptureFactory {
	interval := time.Duration(cfg.ScreenshotIntervalSec) * time.Second
	settle := time.Duration(cfg.SettleMs) * time.Millisecond

	return func(title string) []gss.Producer {
		var ps []gss.Producer
		if capturer != nil && interval > 0 {
			ps = append(ps, NewPeriodicSampler(capturer, title, cfg.StagingDir, interval, cfg.PhashThreshold, clock, logger))
		}
		if cfg.WatchDir != "" {
			ps = append(ps, NewScreenshotWatcher(title, cfg.WatchDir, cfg.StagingDir, settle, clock, logger))
		}
		return ps
	}
}
