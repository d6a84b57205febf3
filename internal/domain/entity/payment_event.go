package entity

// Payment processor events that mutate billing state.
const (
	PaymentCheckoutCompleted   = "checkout.session.completed"
	PaymentSubscriptionUpdated = "customer.subscription.updated"
	PaymentSubscriptionDeleted = "customer.subscription.deleted"
)

// PaymentEvent is a verified processor event reduced to the fields the
// billing flow reads.
type PaymentEvent struct {
	ID             string
	Type           string
	CustomerID     string
	SubscriptionID string
	Status         string
	Metadata       map[string]string
}
