package server

import (
	"context"
	"time"
)

// Watch polls the document every WatchInterval until ctx is done. A zero
// interval returns at once. Unchanged content is ignored.
func (s *Server) Watch(ctx context.Context) {
	interval := s.config.WatchInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ticker.C:
			_, err := s.Reload(ctx)
			switch {
			case err != nil && !failing:
				s.logger.Warn("document watch failed", "error", err)
				failing = true
			case err == nil && failing:
				s.logger.Info("document watch recovered")
				failing = false
			}

		case <-ctx.Done():
			return
		}
	}
}
