// Package poller decides when an open conversation needs a reload. There is
// no live transport: checks run on presentation events such as screen focus
// and shortly after a send.
package poller

import (
	"context"

	"healthtracker-doctors/internal/logger"

	"go.uber.org/zap"
)

type NewerChecker interface {
	HasNewerMessages(ctx context.Context, userID, otherUserID, sinceMessageID string) (bool, error)
}

// State exposes the open conversation and its watermark.
type State interface {
	Active() (userID, otherUserID string, ok bool)
	Watermark() string
}

type Checker struct {
	gw     NewerChecker
	state  State
	reload func(ctx context.Context) error
}

func NewChecker(gw NewerChecker, state State, reload func(ctx context.Context) error) *Checker {
	return &Checker{gw: gw, state: state, reload: reload}
}

// Check asks whether anything newer than the watermark exists and reloads
// when it does. Without a watermark there is nothing to compare against and
// the answer is false. Gateway failures are logged and reported as false.
func (c *Checker) Check(ctx context.Context) bool {
	userID, otherUserID, ok := c.state.Active()
	if !ok {
		return false
	}
	watermark := c.state.Watermark()
	if watermark == "" {
		return false
	}

	newer, err := c.gw.HasNewerMessages(ctx, userID, otherUserID, watermark)
	if err != nil {
		logger.Log.Warn("staleness check failed",
			zap.String("user_id", userID),
			zap.String("other_user_id", otherUserID),
			zap.Error(err),
		)
		return false
	}
	if !newer {
		return false
	}

	if c.reload != nil {
		if err := c.reload(ctx); err != nil {
			logger.Log.Warn("reload after staleness check", zap.String("other_user_id", otherUserID), zap.Error(err))
		}
	}
	return true
}
