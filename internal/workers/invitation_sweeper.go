package workers

import (
	"context"
	"time"

	"khpl-backend/internal/application/invitations"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// StartInvitationSweeper runs a periodic job that marks pending invitations
// past their expiry as expired. Bookkeeping only: consumption re-checks
// expiry, so correctness never depends on this job.
func StartInvitationSweeper(svc *invitations.Service, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		interval = time.Hour
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := svc.ExpireSweep(context.Background(), time.Now())
			if err != nil {
				log.Warn().Err(err).Msg("invitation expiry sweep failed")
				return
			}
			if n > 0 {
				log.Info().Int64("expired", n).Msg("invitation expiry sweep")
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
