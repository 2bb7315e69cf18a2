package subscription

import (
	"errors"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/payment"
)

// Provider is the slice of the payment gateway the reconciler needs. Webhook
// payloads carry most of the state; the provider is only consulted for
// invoice events and upstream cancellation.
type Provider interface {
	RetrieveSubscription(id string) (*payment.Subscription, error)
	RetrieveCustomer(id string) (*payment.Customer, error)
	CancelSubscription(id string) error
}

// Reconciler keeps local subscription state consistent with the payment
// provider. Every handler is safe to replay: transitions are guarded by
// state preconditions, so webhook redelivery cannot double-apply.
type Reconciler struct {
	db       *gorm.DB
	provider Provider
}

func NewReconciler(db *gorm.DB, provider Provider) *Reconciler {
	return &Reconciler{db: db, provider: provider}
}

// HandleSubscriptionCreated links the provider subscription to the local
// record that was pre-created at checkout time (matched by customer, still
// without an external id).
func (r *Reconciler) HandleSubscriptionCreated(ps payment.Subscription) error {
	var local model.Subscription
	err := r.db.
		Where("customer_id = ? AND external_id IS NULL", ps.CustomerID).
		Order("created_at DESC").
		First(&local).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("No local subscription for customer %s, ignoring created event", ps.CustomerID)
			return nil
		}
		return err
	}

	updates := map[string]interface{}{"external_id": ps.ID}
	if ps.Status != payment.StatusActive {
		updates["status"] = model.SubscriptionStatusPending
	}
	if err := r.db.Model(&local).Updates(updates).Error; err != nil {
		return err
	}

	if ps.Status == payment.StatusActive {
		return r.activate(ps)
	}
	return nil
}

// HandleSubscriptionUpdated applies the provider status to the local state
// machine.
func (r *Reconciler) HandleSubscriptionUpdated(ps payment.Subscription) error {
	switch ps.Status {
	case payment.StatusActive:
		return r.activate(ps)
	case payment.StatusCanceled:
		return r.HandleSubscriptionDeleted(ps.ID)
	case payment.StatusPastDue:
		return r.setStatusByExternalID(ps.ID, model.SubscriptionStatusPending)
	case payment.StatusUnpaid:
		return r.setStatusByExternalID(ps.ID, model.SubscriptionStatusExpired)
	case payment.StatusIncomplete, payment.StatusIncompleteExpired:
		return r.setStatusByExternalID(ps.ID, model.SubscriptionStatusCancelled)
	default:
		log.Printf("Unhandled provider subscription status: %s", ps.Status)
		return nil
	}
}

func (r *Reconciler) HandleSubscriptionDeleted(externalID string) error {
	return r.setStatusByExternalID(externalID, model.SubscriptionStatusCancelled)
}

// HandleInvoicePaid refreshes an already-active subscription's period end, or
// runs the activation path when the provider reports the subscription active.
// Trialing subscriptions activate with the trial window as their period.
func (r *Reconciler) HandleInvoicePaid(subscriptionID string) error {
	if subscriptionID == "" {
		log.Printf("Invoice without a subscription, ignoring")
		return nil
	}

	var local model.Subscription
	localErr := r.db.Where("external_id = ?", subscriptionID).First(&local).Error
	if localErr != nil && !errors.Is(localErr, gorm.ErrRecordNotFound) {
		return localErr
	}

	ps, err := r.provider.RetrieveSubscription(subscriptionID)
	if err != nil {
		return apperr.Upstream("Could not retrieve provider subscription", err)
	}

	if localErr == nil && local.Status == model.SubscriptionStatusActive {
		// Already processed; only refresh the period end.
		return r.db.Model(&local).Update("end_date", ps.CurrentPeriodEnd).Error
	}

	if ps.Status == payment.StatusActive {
		return r.activate(*ps)
	}

	if errors.Is(localErr, gorm.ErrRecordNotFound) {
		log.Printf("No local subscription for external id %s", subscriptionID)
		return nil
	}

	updates := map[string]interface{}{"end_date": ps.CurrentPeriodEnd}
	if ps.Status == payment.StatusTrialing {
		updates["status"] = model.SubscriptionStatusActive
		if ps.TrialStart != nil {
			updates["start_date"] = *ps.TrialStart
		}
		if ps.TrialEnd != nil {
			updates["end_date"] = *ps.TrialEnd
		}
	}
	return r.db.Model(&local).Updates(updates).Error
}

// HandleInvoicePaymentFailed parks the subscription in PENDING until the
// provider retries the charge.
func (r *Reconciler) HandleInvoicePaymentFailed(subscriptionID string) error {
	if subscriptionID == "" {
		return nil
	}
	return r.setStatusByExternalID(subscriptionID, model.SubscriptionStatusPending)
}

// activate is the shared activation path. It resolves the owning user
// (local profiles first, provider customer metadata as fallback), skips
// subscriptions that are already ACTIVE, and propagates the subscription to
// every teacher the director created that has none yet.
func (r *Reconciler) activate(ps payment.Subscription) error {
	var local model.Subscription
	err := r.db.Preload("Profiles").Where("external_id = ?", ps.ID).First(&local).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("No local subscription for external id %s", ps.ID)
			return nil
		}
		return err
	}

	if local.Status == model.SubscriptionStatusActive {
		log.Printf("Subscription %s already active, skipping activation", ps.ID)
		return nil
	}

	directorID, err := r.resolveOwner(&local, ps.CustomerID)
	if err != nil {
		return err
	}
	if directorID == 0 {
		log.Printf("Owner not found for subscription %s", ps.ID)
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Subscription{}).
			Where("id = ?", local.ID).
			Updates(map[string]interface{}{
				"status":   model.SubscriptionStatusActive,
				"end_date": ps.CurrentPeriodEnd,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.Profile{}).
			Where("id = ?", directorID).
			Update("subscription_id", local.ID).Error; err != nil {
			return err
		}

		return tx.Model(&model.Profile{}).
			Where("created_by_id = ? AND subscription_id IS NULL", directorID).
			Update("subscription_id", local.ID).Error
	})
}

// resolveOwner returns the director profile id owning the subscription.
func (r *Reconciler) resolveOwner(local *model.Subscription, customerID string) (uint, error) {
	if len(local.Profiles) > 0 {
		for _, p := range local.Profiles {
			if p.IsDirector() {
				return p.ID, nil
			}
		}
		return local.Profiles[0].ID, nil
	}

	customer, err := r.provider.RetrieveCustomer(customerID)
	if err != nil {
		return 0, apperr.Upstream("Could not retrieve provider customer", err)
	}
	if customer.UserID == "" {
		return 0, nil
	}

	userID, err := strconv.ParseUint(customer.UserID, 10, 64)
	if err != nil {
		return 0, nil
	}

	var profile model.Profile
	if err := r.db.Where("user_id = ?", uint(userID)).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return profile.ID, nil
}

func (r *Reconciler) setStatusByExternalID(externalID, status string) error {
	var sub model.Subscription
	if err := r.db.Where("external_id = ?", externalID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Subscription not found")
		}
		return err
	}
	return r.db.Model(&sub).Update("status", status).Error
}

// ExpireOverdue is the daily sweep: ACTIVE subscriptions past their end date
// are cancelled upstream (when linked) and marked EXPIRED. Subscriptions
// attached to an admin user are left alone. Failures are logged per record so
// one bad row does not stall the batch.
func (r *Reconciler) ExpireOverdue(now time.Time) error {
	var subs []model.Subscription
	err := r.db.
		Where("status = ? AND end_date < ?", model.SubscriptionStatusActive, now).
		Find(&subs).Error
	if err != nil {
		return err
	}

	for _, sub := range subs {
		var adminCount int64
		err := r.db.Model(&model.Profile{}).
			Joins("JOIN users ON users.id = profiles.user_id AND users.is_admin = ?", true).
			Where("profiles.subscription_id = ?", sub.ID).
			Count(&adminCount).Error
		if err != nil {
			log.Printf("Error checking admin profiles for subscription %d: %v", sub.ID, err)
			continue
		}
		if adminCount > 0 {
			continue
		}

		if sub.ExternalID != nil {
			if err := r.provider.CancelSubscription(*sub.ExternalID); err != nil {
				log.Printf("Error cancelling subscription %s upstream: %v", *sub.ExternalID, err)
				continue
			}
		}

		if err := r.db.Model(&sub).Update("status", model.SubscriptionStatusExpired).Error; err != nil {
			log.Printf("Error expiring subscription %d: %v", sub.ID, err)
		}
	}
	return nil
}

// RemoveAbandoned garbage-collects subscriptions created more than 24 hours
// ago that never got a director attached: the checkout was abandoned.
func (r *Reconciler) RemoveAbandoned(now time.Time) error {
	cutoff := now.Add(-24 * time.Hour)

	var subs []model.Subscription
	err := r.db.
		Where("created_at <= ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM profiles WHERE profiles.subscription_id = subscriptions.id AND profiles.role = ? AND profiles.deleted_at IS NULL)", model.RoleDirector).
		Find(&subs).Error
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if err := deleteSubscription(r.db, sub.ID); err != nil {
			log.Printf("Error removing abandoned subscription %d: %v", sub.ID, err)
		}
	}
	return nil
}
