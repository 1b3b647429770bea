package reverie

import (
	"context"
	"time"
)

// startIndexWorker periodically indexes the diary source so diaries added
// while the process runs become searchable. Already indexed diaries are
// skipped by IndexDiaries.
func (c *Companion) startIndexWorker(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelIndex = cancel

	c.indexing.Add(1)
	go func() {
		defer c.indexing.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n, err := c.IndexDiaries(ctx)
				if err != nil {
					c.cfg.Logger.Warn().Err(err).Msg("diary index sweep failed")
				} else if n > 0 {
					c.cfg.Logger.Info().Int("stored", n).Msg("diary index sweep")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
