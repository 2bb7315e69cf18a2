package payment

import (
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// StripeGateway wraps the Stripe API behind the narrow surface the
// subscription code needs.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(secretKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// VerifyWebhook checks the payload signature and returns the parsed event.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, g.webhookSecret)
}

func (g *StripeGateway) GetOrCreateCustomer(email, fullName string, userID uint) (*Customer, error) {
	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	listParams.Limit = stripe.Int64(1)

	iter := g.api.Customers.List(listParams)
	for iter.Next() {
		return toCustomer(iter.Customer()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(fullName),
	}
	params.AddMetadata("userId", strconv.FormatUint(uint64(userID), 10))

	c, err := g.api.Customers.New(params)
	if err != nil {
		return nil, err
	}
	return toCustomer(c), nil
}

func (g *StripeGateway) RetrieveCustomer(id string) (*Customer, error) {
	c, err := g.api.Customers.Get(id, nil)
	if err != nil {
		return nil, err
	}
	return toCustomer(c), nil
}

// GetOrCreatePlanPrice resolves the recurring price for a catalog plan by
// lookup key, provisioning product and price on first use.
func (g *StripeGateway) GetOrCreatePlanPrice(planType string, amount float64) (string, error) {
	lookupKey := "plan_" + planType

	listParams := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{lookupKey}),
	}
	iter := g.api.Prices.List(listParams)
	for iter.Next() {
		return iter.Price().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}

	productParams := &stripe.ProductParams{
		Name: stripe.String(fmt.Sprintf("Plano %s", planType)),
	}
	productParams.AddMetadata("planType", planType)

	product, err := g.api.Products.New(productParams)
	if err != nil {
		return "", err
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(int64(amount * 100)),
		Currency:   stripe.String(string(stripe.CurrencyBRL)),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			IntervalCount: stripe.Int64(1),
		},
		LookupKey: stripe.String(lookupKey),
		Nickname:  stripe.String(fmt.Sprintf("Plano %s", planType)),
	}

	price, err := g.api.Prices.New(priceParams)
	if err != nil {
		return "", err
	}
	return price.ID, nil
}

// CreateCustomPrice provisions a bespoke product and price for a negotiated
// PLUS subscription.
func (g *StripeGateway) CreateCustomPrice(name string, amount float64, recurring Recurring, metadata map[string]string) (string, error) {
	productParams := &stripe.ProductParams{Name: stripe.String(name)}
	for k, v := range metadata {
		productParams.AddMetadata(k, v)
	}

	product, err := g.api.Products.New(productParams)
	if err != nil {
		return "", err
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(int64(amount * 100)),
		Currency:   stripe.String(string(stripe.CurrencyBRL)),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(recurring.Interval),
			IntervalCount: stripe.Int64(int64(recurring.IntervalCount)),
		},
		Nickname: stripe.String(name),
	}

	price, err := g.api.Prices.New(priceParams)
	if err != nil {
		return "", err
	}
	return price.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "boleto"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		CustomerUpdate: &stripe.CheckoutSessionCustomerUpdateParams{
			Address: stripe.String("auto"),
		},
		Locale: stripe.String("pt-BR"),
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	if len(p.Metadata) > 0 || p.TrialEnd != nil {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		}
		if p.TrialEnd != nil {
			params.SubscriptionData.TrialEnd = stripe.Int64(p.TrialEnd.Unix())
		}
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) RetrieveSubscription(id string) (*Subscription, error) {
	s, err := g.api.Subscriptions.Get(id, nil)
	if err != nil {
		return nil, err
	}
	return toSubscription(s), nil
}

// UpdateSubscriptionPrice swaps the subscription onto a new price, prorating
// the difference.
func (g *StripeGateway) UpdateSubscriptionPrice(id, priceID string) error {
	s, err := g.api.Subscriptions.Get(id, nil)
	if err != nil {
		return err
	}
	if len(s.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", id)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(s.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	_, err = g.api.Subscriptions.Update(id, params)
	return err
}

func (g *StripeGateway) CancelSubscription(id string) error {
	_, err := g.api.Subscriptions.Cancel(id, nil)
	return err
}

// FindActiveSubscription returns the customer's active provider subscription,
// or nil when there is none.
func (g *StripeGateway) FindActiveSubscription(customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)

	iter := g.api.Subscriptions.List(params)
	for iter.Next() {
		return toSubscription(iter.Subscription()), nil
	}
	return nil, iter.Err()
}

func toCustomer(c *stripe.Customer) *Customer {
	out := &Customer{ID: c.ID, Email: c.Email}
	if c.Metadata != nil {
		out.UserID = c.Metadata["userId"]
	}
	return out
}

func toSubscription(s *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:               s.ID,
		Status:           string(s.Status),
		CurrentPeriodEnd: time.Unix(s.CurrentPeriodEnd, 0),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.TrialStart > 0 {
		t := time.Unix(s.TrialStart, 0)
		out.TrialStart = &t
	}
	if s.TrialEnd > 0 {
		t := time.Unix(s.TrialEnd, 0)
		out.TrialEnd = &t
	}
	return out
}
