package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v74"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/database"
	"peiplan_backend/pkg/email"
	"peiplan_backend/pkg/payment"
	"peiplan_backend/pkg/plan"
	"peiplan_backend/pkg/subscription"
	"peiplan_backend/pkg/utils/jwt"
)

var (
	subscriptionService *subscription.Service
	reconciler          *subscription.Reconciler
	gateway             *payment.StripeGateway
)

func InitSubscriptionController(service *subscription.Service, rec *subscription.Reconciler, gw *payment.StripeGateway) {
	subscriptionService = service
	reconciler = rec
	gateway = gw
}

func ListPlans(c *fiber.Ctx) error {
	type planView struct {
		Type     plan.Type     `json:"type"`
		Price    float64       `json:"price"`
		Limits   plan.Limits   `json:"limits"`
		Features plan.Features `json:"features"`
	}

	plans := make([]planView, 0, len(plan.Catalog))
	for _, t := range []plan.Type{plan.Fit, plan.Basic, plan.Premium} {
		cfg := plan.Catalog[t]
		plans = append(plans, planView{
			Type:     t,
			Price:    cfg.Price,
			Limits:   cfg.Limits,
			Features: cfg.Features,
		})
	}

	return c.JSON(plans)
}

type SubscribeInput struct {
	PlanType string `json:"plan_type" validate:"required"`
}

// Subscribe opens a checkout session for a catalog plan.
func Subscribe(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(SubscribeInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var user model.User
	if err := database.DB.First(&user, claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "User not found",
		})
	}

	session, err := subscriptionService.SubscribeToPlan(&user, plan.Type(input.PlanType))
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"checkout_url": session.URL,
		"session_id":   session.ID,
	})
}

func CancelSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	if err := subscriptionService.CancelSubscription(claims.ProfileID); err != nil {
		return apperr.Respond(c, err)
	}

	if email.GlobalEmailService != nil {
		var profile model.Profile
		if err := database.DB.Preload("User").Preload("Subscription").First(&profile, claims.ProfileID).Error; err == nil && profile.Subscription != nil {
			expiresAt := time.Now()
			if profile.Subscription.EndDate != nil {
				expiresAt = *profile.Subscription.EndDate
			}
			err := email.GlobalEmailService.SendSubscriptionCancelledEmail(profile.User.Email, email.SubscriptionCancelledData{
				FullName:  profile.User.FullName,
				PlanType:  profile.Subscription.PlanType,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				log.Printf("Could not send subscription cancellation email: %v", err)
			}
		}
	}

	return c.JSON(fiber.Map{
		"message": "Subscription cancelled successfully",
	})
}

// GetMySubscription returns the subscription in force for the caller's tenant
// together with current usage.
func GetMySubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	checker := subscription.NewChecker(database.DB)
	tenantID, err := checker.ResolveTenant(claims.ProfileID)
	if err != nil {
		return apperr.Respond(c, err)
	}

	sub, err := checker.ResolveSubscription(tenantID)
	if err != nil {
		return apperr.Respond(c, err)
	}

	usage, err := checker.CurrentUsage(tenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not compute usage",
		})
	}

	return c.JSON(fiber.Map{
		"subscription": sub,
		"usage":        usage,
	})
}

// webhookSubscription is the slice of the provider payload the reconciler
// consumes.
type webhookSubscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	TrialStart       int64  `json:"trial_start"`
	TrialEnd         int64  `json:"trial_end"`
}

func (w webhookSubscription) toPayment() payment.Subscription {
	ps := payment.Subscription{
		ID:               w.ID,
		CustomerID:       w.Customer,
		Status:           w.Status,
		CurrentPeriodEnd: time.Unix(w.CurrentPeriodEnd, 0),
	}
	if w.TrialStart > 0 {
		t := time.Unix(w.TrialStart, 0)
		ps.TrialStart = &t
	}
	if w.TrialEnd > 0 {
		t := time.Unix(w.TrialEnd, 0)
		ps.TrialEnd = &t
	}
	return ps
}

// notifySubscriptionStarted mails the director once an invoice settles.
func notifySubscriptionStarted(externalID string, isRenewal bool) {
	if email.GlobalEmailService == nil || externalID == "" {
		return
	}

	var sub model.Subscription
	if err := database.DB.Where("external_id = ?", externalID).First(&sub).Error; err != nil {
		return
	}

	var director model.Profile
	if err := database.DB.Preload("User").
		Where("subscription_id = ? AND role = ?", sub.ID, model.RoleDirector).
		First(&director).Error; err != nil {
		return
	}

	expiresAt := time.Now()
	if sub.EndDate != nil {
		expiresAt = *sub.EndDate
	}

	err := email.GlobalEmailService.SendSubscriptionStartedEmail(director.User.Email, email.SubscriptionStartedData{
		FullName:  director.User.FullName,
		PlanType:  sub.PlanType,
		Price:     sub.Price,
		ExpiresAt: expiresAt,
		IsRenewal: isRenewal,
	})
	if err != nil {
		log.Printf("Could not send subscription started email: %v", err)
	}
}

// dispatchWebhookEvent unpacks the event payload and runs the matching
// reconciler handler. A payload that does not parse is a Validation error;
// everything else is a processing error from the handler itself.
func dispatchWebhookEvent(event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created":
		var sub webhookSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Validation("Could not parse webhook payload")
		}
		return reconciler.HandleSubscriptionCreated(sub.toPayment())

	case "customer.subscription.updated":
		var sub webhookSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Validation("Could not parse webhook payload")
		}
		return reconciler.HandleSubscriptionUpdated(sub.toPayment())

	case "customer.subscription.deleted":
		var sub webhookSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Validation("Could not parse webhook payload")
		}
		return reconciler.HandleSubscriptionDeleted(sub.ID)

	case "invoice.paid", "invoice.payment_succeeded":
		var invoice struct {
			Subscription  string `json:"subscription"`
			BillingReason string `json:"billing_reason"`
		}
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return apperr.Validation("Could not parse webhook payload")
		}
		if err := reconciler.HandleInvoicePaid(invoice.Subscription); err != nil {
			return err
		}
		notifySubscriptionStarted(invoice.Subscription, invoice.BillingReason == "subscription_cycle")
		return nil

	case "invoice.payment_failed":
		var invoice struct {
			Subscription string `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return apperr.Validation("Could not parse webhook payload")
		}
		return reconciler.HandleInvoicePaymentFailed(invoice.Subscription)

	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
		return nil
	}
}

// HandleStripeWebhook verifies and dispatches provider events. Processing
// failures are logged but still answered with 200 so the provider does not
// retry forever; a bad signature or an unparseable payload is rejected.
func HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := gateway.VerifyWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	log.Printf("Processing webhook event: %s", event.Type)

	if err := dispatchWebhookEvent(event); err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			log.Printf("Malformed webhook payload for event %s: %v", event.Type, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid webhook payload",
			})
		}
		log.Printf("Error processing webhook event %s: %v", event.Type, err)
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}
