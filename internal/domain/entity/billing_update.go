package entity

// BillingUpdate is the typed merge for processor-driven subscription
// changes. Nil leaves a field unchanged; an empty id clears it.
type BillingUpdate struct {
	Tier           *string
	Status         *string
	CustomerID     *string
	SubscriptionID *string
}

func (b BillingUpdate) Apply(u *Identity) {
	if b.Tier != nil {
		u.SubscriptionTier = *b.Tier
	}
	if b.Status != nil {
		u.SubscriptionStatus = *b.Status
	}
	if b.CustomerID != nil {
		u.StripeCustomerID = *b.CustomerID
	}
	if b.SubscriptionID != nil {
		u.StripeSubscriptionID = *b.SubscriptionID
	}
}
