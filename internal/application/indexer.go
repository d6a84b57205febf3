package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// IndexedEvents counts identity events handled by the indexer by outcome.
var IndexedEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_index_events_total",
		Help: "Identity events processed by the search indexer",
	},
	[]string{"outcome"},
)

// IdentityIndexer keeps the search index in step with the identity store.
// Events only carry the id; the stored row is the source of truth.
type IdentityIndexer struct {
	Repo   repo.IdentityRepository
	Index  IdentityIndex
	Logger *logrus.Logger
}

func NewIdentityIndexer(r repo.IdentityRepository, index IdentityIndex, logger *logrus.Logger) *IdentityIndexer {
	return &IdentityIndexer{Repo: r, Index: index, Logger: loggerOrDefault(logger)}
}

// Handle matches helpers.MessageHandler. Undecodable events and events for
// identities that no longer exist are not retried.
func (x *IdentityIndexer) Handle(ctx context.Context, body []byte) error {
	var ev entity.IdentityEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.IdentityID <= 0 {
		IndexedEvents.WithLabelValues("malformed").Inc()
		return fmt.Errorf("%w: malformed identity event", helpers.ErrDropMessage)
	}

	u, err := x.Repo.GetByID(ctx, ev.IdentityID)
	if errors.Is(err, repo.ErrNotFound) {
		IndexedEvents.WithLabelValues("skipped").Inc()
		x.Logger.WithField("identity_id", ev.IdentityID).Debug("identity gone, skipping index")
		return nil
	}
	if err != nil {
		IndexedEvents.WithLabelValues("retry").Inc()
		return fmt.Errorf("load identity %d: %w", ev.IdentityID, err)
	}

	if err := x.Index.Index(ctx, entity.NewIdentityDocument(u)); err != nil {
		IndexedEvents.WithLabelValues("retry").Inc()
		return fmt.Errorf("index identity %d: %w", ev.IdentityID, err)
	}
	IndexedEvents.WithLabelValues("indexed").Inc()
	x.Logger.WithFields(logrus.Fields{"identity_id": u.ID, "event": ev.Type}).Debug("identity indexed")
	return nil
}
