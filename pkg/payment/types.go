package payment

import "time"

// Provider-side subscription statuses, as delivered on webhook payloads.
const (
	StatusActive            = "active"
	StatusCanceled          = "canceled"
	StatusPastDue           = "past_due"
	StatusUnpaid            = "unpaid"
	StatusIncomplete        = "incomplete"
	StatusIncompleteExpired = "incomplete_expired"
	StatusTrialing          = "trialing"
)

// Subscription is the slice of the provider's subscription object the rest of
// the system cares about.
type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd time.Time
	TrialStart       *time.Time
	TrialEnd         *time.Time
}

type Customer struct {
	ID     string
	Email  string
	UserID string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
	// TrialEnd defers billing until the negotiated start date.
	TrialEnd *time.Time
}

type Recurring struct {
	Interval      string
	IntervalCount int
}
