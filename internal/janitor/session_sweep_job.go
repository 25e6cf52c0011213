package janitor

import (
	"context"
	"fmt"

	"github.com/tillpoint/tillsync/pkg/logger"
)

type sessionSweeper interface {
	MarkIdleStale(ctx context.Context) (int64, error)
}

// SessionSweepJobParams configure the stale session sweep.
type SessionSweepJobParams struct {
	Logger   *logger.Logger
	Sessions sessionSweeper
}

// NewSessionSweepJob builds the job that downgrades silent device sessions
// to idle so dashboards stop showing dead terminals as online.
func NewSessionSweepJob(params SessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session service required")
	}
	return &sessionSweepJob{
		logg:     params.Logger,
		sessions: params.Sessions,
	}, nil
}

type sessionSweepJob struct {
	logg     *logger.Logger
	sessions sessionSweeper
}

func (j *sessionSweepJob) Name() string { return "session-sweep" }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	marked, err := j.sessions.MarkIdleStale(ctx)
	if err != nil {
		return fmt.Errorf("session sweep: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_marked", marked), "session sweep complete")
	return nil
}
