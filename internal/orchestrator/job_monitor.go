package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// monitorJob watches one export job until it reaches a terminal state or
// the deadline passes. On timeout the job is cancelled in Redis so workers
// stop rendering and the status is marked failed.
func (o *Orchestrator) monitorJob(jobID string, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	log.Debug().Str("job_id", jobID).Dur("timeout", timeout).Msg("started job monitor")

	for {
		select {
		case <-deadline.C:
			log.Warn().Str("job_id", jobID).Dur("timeout", timeout).Msg("job timeout reached - cancelling")
			ctx := context.Background()
			_ = o.deps.Queue.CancelJob(ctx, jobID)

			st, ok, _ := o.deps.Status.Get(ctx, jobID)
			if !ok {
				st = Status{}
			}
			if st.Status == "success" || st.Status == "failed" || st.Status == "cancelled" {
				return
			}
			now := time.Now()
			st.Status = "failed"
			st.Message = "timed out"
			st.End = &now
			_ = o.deps.Status.Set(ctx, jobID, st)
			return

		case <-ticker.C:
			ctx := context.Background()

			if cancelled, _ := o.deps.Queue.IsCancelled(ctx, jobID); cancelled {
				log.Info().Str("job_id", jobID).Msg("job cancelled - stopping monitor")
				return
			}

			st, ok, err := o.deps.Status.Get(ctx, jobID)
			if !ok || err != nil {
				log.Warn().Err(err).Str("job_id", jobID).Msg("failed to get status in monitor")
				continue
			}
			switch st.Status {
			case "success", "failed", "cancelled":
				log.Debug().Str("job_id", jobID).Str("status", st.Status).Msg("job finished - stopping monitor")
				return
			}
		}
	}
}
