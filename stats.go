package ring

import (
	"log/slog"
	"time"
)

func (r *Ring) startStats() {
	if r.cfg.StatsInterval <= 0 {
		close(r.statsDone)
		return
	}
	go func() {
		defer close(r.statsDone)
		var ticker = time.NewTicker(r.cfg.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.statsStop:
				return
			case <-ticker.C:
				r.logStats()
			}
		}
	}()
}

func (r *Ring) stopStats() {
	close(r.statsStop)
	if r.started.Load() {
		<-r.statsDone
	}
}

func (r *Ring) logStats() {
	var s = r.Stats()
	r.logger.Info("ringStats",
		slog.String("ringId", r.Id),
		slog.Int("free", s.Free),
		slog.Int("busy", s.Busy),
		slog.Int("null", s.NullPayload),
		slog.Int("notNull", s.NonNullPayload),
		slog.Uint64("resets", r.resets.Load()),
		slog.Uint64("timeouts", r.timeouts.Load()),
	)
}
