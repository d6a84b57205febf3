package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

// publishIdentityEvent is best-effort: a broker outage never fails the
// operation that produced the event.
func publishIdentityEvent(ctx context.Context, pub EventPublisher, logger *logrus.Logger, typ string, u *entity.Identity) {
	if pub == nil {
		return
	}
	ev := entity.IdentityEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		IdentityID: u.ID,
		Email:      u.Email,
		OccurredAt: time.Now().UTC(),
	}
	if err := pub.PublishJSON(ctx, ev); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"event": typ, "identity_id": u.ID}).Warn("publish identity event failed")
	}
}

func loggerOrDefault(l *logrus.Logger) *logrus.Logger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}
