package application

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
)

type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    int      `json:"price"`
	Features []string `json:"features"`
}

var planCatalog = []Plan{
	{ID: entity.TierFree, Name: "Free", Price: 0, Features: []string{"3 projects", "Basic editor", "Community support"}},
	{ID: entity.TierBasic, Name: "Basic", Price: 9, Features: []string{"10 projects", "Advanced editor", "Priority support", "Custom themes"}},
	{ID: entity.TierPro, Name: "Pro", Price: 29, Features: []string{"Unlimited projects", "Premium editor", "24/7 support", "Custom themes", "Team collaboration", "Advanced analytics"}},
	{ID: entity.TierEnterprise, Name: "Enterprise", Price: 99, Features: []string{"Everything in Pro", "Custom integrations", "Dedicated support", "SLA guarantees", "On-premise options"}},
}

type SubscriptionStatus struct {
	Tier                  string `json:"tier"`
	Status                string `json:"status"`
	HasActiveSubscription bool   `json:"has_active_subscription"`
}

// BillingService owns the subscription fields of an Identity. It is the
// only writer of tier, status and processor ids.
type BillingService struct {
	Repo     repo.IdentityRepository
	Payments PaymentProvider
	Prices   map[string]string // plan id -> processor price id
	Logger   *logrus.Logger
}

func NewBillingService(r repo.IdentityRepository, payments PaymentProvider, prices map[string]string, logger *logrus.Logger) *BillingService {
	return &BillingService{Repo: r, Payments: payments, Prices: prices, Logger: loggerOrDefault(logger)}
}

func strPtr(s string) *string { return &s }

func (s *BillingService) Plans() []Plan {
	out := make([]Plan, len(planCatalog))
	for i, p := range planCatalog {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

func paidPlan(id string) bool {
	if id == entity.TierFree {
		return false
	}
	for _, p := range planCatalog {
		if p.ID == id {
			return true
		}
	}
	return false
}

// CreateCheckout returns a hosted checkout URL for planID, creating the
// processor customer the first time the identity subscribes.
func (s *BillingService) CreateCheckout(ctx context.Context, actor *entity.Identity, planID string) (string, error) {
	if _, err := RequireActive(actor); err != nil {
		return "", err
	}
	price := s.Prices[planID]
	if !paidPlan(planID) || price == "" {
		return "", ErrInvalidPlan
	}
	if s.Payments == nil {
		return "", s.internal(errors.New("payments not configured"), "create checkout failed", actor.ID)
	}

	u, err := s.load(ctx, actor.ID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID == "" {
		customerID, err := s.Payments.CreateCustomer(ctx, u.Email, u.ID)
		if err != nil {
			return "", s.internal(err, "create customer failed", u.ID)
		}
		if err := s.save(ctx, u, entity.BillingUpdate{CustomerID: strPtr(customerID)}); err != nil {
			return "", err
		}
	}

	url, err := s.Payments.CreateCheckoutSession(ctx, u.StripeCustomerID, price, map[string]string{
		"user_id": strconv.FormatInt(u.ID, 10),
		"plan_id": planID,
	})
	if err != nil {
		return "", s.internal(err, "create checkout session failed", u.ID)
	}
	return url, nil
}

// CancelSubscription cancels at period end; the processor's later
// subscription.deleted event drops the tier back to free.
func (s *BillingService) CancelSubscription(ctx context.Context, actor *entity.Identity) error {
	if _, err := RequireActive(actor); err != nil {
		return err
	}
	u, err := s.load(ctx, actor.ID)
	if err != nil {
		return err
	}
	if u.StripeSubscriptionID == "" {
		return ErrNoActiveSubscription
	}
	if s.Payments == nil {
		return s.internal(errors.New("payments not configured"), "cancel subscription failed", u.ID)
	}
	if err := s.Payments.CancelSubscription(ctx, u.StripeSubscriptionID); err != nil {
		return s.internal(err, "cancel subscription failed", u.ID)
	}
	return s.save(ctx, u, entity.BillingUpdate{Status: strPtr(entity.SubscriptionCanceled)})
}

func (s *BillingService) Status(actor *entity.Identity) (*SubscriptionStatus, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	return &SubscriptionStatus{
		Tier:                  actor.SubscriptionTier,
		Status:                actor.SubscriptionStatus,
		HasActiveSubscription: actor.SubscriptionStatus == entity.SubscriptionActive,
	}, nil
}

// HandleWebhook verifies and applies a processor event. Events for unknown
// identities or types are acknowledged and ignored; store failures return
// ErrInternal so the processor retries.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if s.Payments == nil {
		return ErrInvalidWebhook
	}
	ev, err := s.Payments.ParseWebhook(payload, signatureHeader)
	if err != nil {
		s.Logger.WithError(err).Warn("webhook rejected")
		return ErrInvalidWebhook
	}
	log := s.Logger.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})

	switch ev.Type {
	case entity.PaymentCheckoutCompleted:
		id, err := strconv.ParseInt(ev.Metadata["user_id"], 10, 64)
		plan := ev.Metadata["plan_id"]
		if err != nil || !paidPlan(plan) {
			log.Warn("checkout event without usable metadata")
			return nil
		}
		return s.applyTo(ctx, log, func() (*entity.Identity, error) { return s.Repo.GetByID(ctx, id) }, entity.BillingUpdate{
			Tier:           strPtr(plan),
			Status:         strPtr(entity.SubscriptionActive),
			SubscriptionID: strPtr(ev.SubscriptionID),
		})

	case entity.PaymentSubscriptionUpdated:
		return s.applyTo(ctx, log, s.bySubscription(ctx, ev.SubscriptionID), entity.BillingUpdate{Status: strPtr(ev.Status)})

	case entity.PaymentSubscriptionDeleted:
		return s.applyTo(ctx, log, s.bySubscription(ctx, ev.SubscriptionID), entity.BillingUpdate{
			Tier:           strPtr(entity.TierFree),
			Status:         strPtr(entity.SubscriptionCanceled),
			SubscriptionID: strPtr(""),
		})
	}

	log.Debug("webhook event ignored")
	return nil
}

func (s *BillingService) bySubscription(ctx context.Context, subscriptionID string) func() (*entity.Identity, error) {
	return func() (*entity.Identity, error) {
		if subscriptionID == "" {
			return nil, repo.ErrNotFound
		}
		return s.Repo.GetByStripeSubscriptionID(ctx, subscriptionID)
	}
}

func (s *BillingService) applyTo(ctx context.Context, log *logrus.Entry, find func() (*entity.Identity, error), p entity.BillingUpdate) error {
	u, err := find()
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn("webhook for unknown identity")
			return nil
		}
		log.WithError(err).Error("webhook identity lookup failed")
		return ErrInternal
	}
	if err := s.save(ctx, u, p); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"identity_id": u.ID, "tier": u.SubscriptionTier, "status": u.SubscriptionStatus}).Info("subscription updated")
	return nil
}

func (s *BillingService) load(ctx context.Context, id int64) (*entity.Identity, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal(err, "load identity failed", id)
	}
	return u, nil
}

// save writes only the billing columns and mirrors the change onto u.
func (s *BillingService) save(ctx context.Context, u *entity.Identity, b entity.BillingUpdate) error {
	if err := s.Repo.UpdateBilling(ctx, u.ID, b); err != nil {
		return s.internal(err, "update billing state failed", u.ID)
	}
	b.Apply(u)
	return nil
}

func (s *BillingService) internal(err error, msg string, identityID int64) error {
	s.Logger.WithError(err).WithField("identity_id", identityID).Error(msg)
	return ErrInternal
}
