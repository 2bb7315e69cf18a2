package subscription

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/payment"
	"peiplan_backend/pkg/plan"
)

// CheckoutProvider extends Provider with everything needed to open a checkout
// and provision bespoke prices.
type CheckoutProvider interface {
	Provider
	GetOrCreateCustomer(email, fullName string, userID uint) (*payment.Customer, error)
	GetOrCreatePlanPrice(planType string, amount float64) (string, error)
	CreateCustomPrice(name string, amount float64, recurring payment.Recurring, metadata map[string]string) (string, error)
	CreateCheckoutSession(p payment.CheckoutParams) (*payment.CheckoutSession, error)
	FindActiveSubscription(customerID string) (*payment.Subscription, error)
	UpdateSubscriptionPrice(id, priceID string) error
}

// Service owns the subscribe / cancel / negotiated-PLUS workflows.
type Service struct {
	db      *gorm.DB
	gateway CheckoutProvider
}

func NewService(db *gorm.DB, gateway CheckoutProvider) *Service {
	return &Service{db: db, gateway: gateway}
}

// SubscribeToPlan opens a checkout session for a catalog plan and pre-creates
// the local PENDING subscription the webhook will later link and activate.
func (s *Service) SubscribeToPlan(user *model.User, planType plan.Type) (*payment.CheckoutSession, error) {
	cfg, ok := plan.Get(planType)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("Plan %s not found", planType))
	}

	customer, err := s.gateway.GetOrCreateCustomer(user.Email, user.FullName, user.ID)
	if err != nil {
		return nil, apperr.Upstream("Could not create provider customer", err)
	}

	priceID, err := s.gateway.GetOrCreatePlanPrice(string(planType), cfg.Price)
	if err != nil {
		return nil, apperr.Upstream("Could not resolve plan price", err)
	}

	session, err := s.gateway.CreateCheckoutSession(payment.CheckoutParams{
		CustomerID: customer.ID,
		PriceID:    priceID,
		Metadata:   map[string]string{"userId": strconv.FormatUint(uint64(user.ID), 10)},
	})
	if err != nil {
		return nil, apperr.Upstream("Could not create checkout session", err)
	}

	if err := s.provisionLocal(planType, cfg, customer.ID); err != nil {
		return nil, err
	}

	return session, nil
}

// provisionLocal creates the local subscription for a customer, or resets the
// existing one back to a fresh PENDING state. Limits and features are written
// in the same transaction as the subscription itself.
func (s *Service) provisionLocal(planType plan.Type, cfg plan.Config, customerID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.Subscription
		err := tx.Where("customer_id = ?", customerID).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil {
			if err := tx.Model(&existing).Updates(map[string]interface{}{
				"plan_type":   string(planType),
				"price":       cfg.Price,
				"status":      model.SubscriptionStatusPending,
				"external_id": nil,
				"start_date":  time.Now(),
				"end_date":    nil,
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.SubscriptionLimit{}).
				Where("subscription_id = ?", existing.ID).
				Updates(map[string]interface{}{
					"max_students":          cfg.Limits.MaxStudents,
					"max_pei_per_trimester": cfg.Limits.MaxPeiPerTrimester,
					"max_weekly_plans":      cfg.Limits.MaxWeeklyPlans,
				}).Error; err != nil {
				return err
			}
			return tx.Model(&model.SubscriptionFeature{}).
				Where("subscription_id = ?", existing.ID).
				Update("premium_support", cfg.Features.PremiumSupport).Error
		}

		sub := model.Subscription{
			PlanType:   string(planType),
			Price:      cfg.Price,
			Status:     model.SubscriptionStatusPending,
			StartDate:  time.Now(),
			CustomerID: &customerID,
			Limit: &model.SubscriptionLimit{
				MaxStudents:        cfg.Limits.MaxStudents,
				MaxPeiPerTrimester: cfg.Limits.MaxPeiPerTrimester,
				MaxWeeklyPlans:     cfg.Limits.MaxWeeklyPlans,
			},
			Feature: &model.SubscriptionFeature{
				PremiumSupport: cfg.Features.PremiumSupport,
			},
		}
		return tx.Create(&sub).Error
	})
}

// CancelSubscription cancels the director's subscription upstream and locally.
func (s *Service) CancelSubscription(directorProfileID uint) error {
	var director model.Profile
	err := s.db.Preload("Subscription").First(&director, directorProfileID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Director not found")
		}
		return err
	}

	if director.Subscription == nil {
		return apperr.Validation("Director has no subscription")
	}
	if director.Subscription.CustomerID == nil {
		return apperr.Validation("Subscription is not linked to the payment provider")
	}

	providerSub, err := s.gateway.FindActiveSubscription(*director.Subscription.CustomerID)
	if err != nil {
		return apperr.Upstream("Could not list provider subscriptions", err)
	}
	if providerSub == nil {
		return apperr.NotFound("No active subscription found at the payment provider")
	}

	if err := s.gateway.CancelSubscription(providerSub.ID); err != nil {
		return apperr.Upstream("Could not cancel provider subscription", err)
	}

	return s.db.Model(director.Subscription).
		Update("status", model.SubscriptionStatusCancelled).Error
}

type CustomSubscriptionInput struct {
	DirectorID    uint          `json:"director_id"`
	Price         float64       `json:"price"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	Frequency     int           `json:"frequency"`
	FrequencyType string        `json:"frequency_type"`
	Limits        plan.Limits   `json:"limits"`
	Features      plan.Features `json:"features"`
}

// CreateCustomSubscription provisions a negotiated PLUS plan: bespoke
// product/price at the provider, replacement of any prior subscription tied to
// the same customer, and a checkout session with deferred billing when the
// negotiated start date is in the future.
func (s *Service) CreateCustomSubscription(input CustomSubscriptionInput) (*payment.CheckoutSession, error) {
	var director model.Profile
	err := s.db.Preload("User").
		Where("id = ? AND role = ?", input.DirectorID, model.RoleDirector).
		First(&director).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Director not found")
		}
		return nil, err
	}

	customer, err := s.gateway.GetOrCreateCustomer(director.User.Email, director.User.FullName, director.UserID)
	if err != nil {
		return nil, apperr.Upstream("Could not create provider customer", err)
	}

	interval := "day"
	if input.FrequencyType == "month" {
		interval = "month"
	}

	priceID, err := s.gateway.CreateCustomPrice(
		fmt.Sprintf("Plano Plus Personalizado - %s", director.User.FullName),
		input.Price,
		payment.Recurring{Interval: interval, IntervalCount: input.Frequency},
		map[string]string{
			"planType":   string(plan.Plus),
			"directorId": strconv.FormatUint(uint64(input.DirectorID), 10),
			"isCustom":   "true",
		},
	)
	if err != nil {
		return nil, apperr.Upstream("Could not create custom price", err)
	}

	var existing model.Subscription
	err = s.db.Where("customer_id = ?", customer.ID).First(&existing).Error
	if err == nil {
		if err := s.RemoveSubscription(existing.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub := model.Subscription{
		PlanType:   string(plan.Plus),
		Price:      input.Price,
		Status:     model.SubscriptionStatusPending,
		StartDate:  input.StartDate,
		EndDate:    &input.EndDate,
		CustomerID: &customer.ID,
		Limit: &model.SubscriptionLimit{
			MaxStudents:        input.Limits.MaxStudents,
			MaxPeiPerTrimester: input.Limits.MaxPeiPerTrimester,
			MaxWeeklyPlans:     input.Limits.MaxWeeklyPlans,
		},
		Feature: &model.SubscriptionFeature{
			PremiumSupport: input.Features.PremiumSupport,
		},
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Profile{}).
			Where("id = ?", director.ID).
			Update("subscription_id", sub.ID).Error; err != nil {
			return err
		}
		return tx.Model(&model.Profile{}).
			Where("created_by_id = ?", director.ID).
			Update("subscription_id", sub.ID).Error
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"userId":              strconv.FormatUint(uint64(director.UserID), 10),
		"directorId":          strconv.FormatUint(uint64(director.ID), 10),
		"subscriptionLocalId": strconv.FormatUint(uint64(sub.ID), 10),
		"isCustom":            "true",
	}

	params := payment.CheckoutParams{
		CustomerID: customer.ID,
		PriceID:    priceID,
		Metadata:   metadata,
	}
	if input.StartDate.After(time.Now()) {
		params.TrialEnd = &input.StartDate
	}

	session, err := s.gateway.CreateCheckoutSession(params)
	if err != nil {
		return nil, apperr.Upstream("Could not create checkout session", err)
	}
	return session, nil
}

type UpdateSubscriptionInput struct {
	Price    float64       `json:"price"`
	Status   string        `json:"status"`
	PlanType string        `json:"plan_type"`
	Limits   plan.Limits   `json:"limits"`
	Features plan.Features `json:"features"`
}

// UpdateSubscription adjusts a negotiated subscription. Price changes
// provision a fresh provider price; a CANCELLED status cancels upstream.
func (s *Service) UpdateSubscription(id uint, input UpdateSubscriptionInput) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.db.Preload("Profiles.User").First(&sub, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Subscription not found")
		}
		return nil, err
	}

	if sub.ExternalID == nil {
		return nil, apperr.Validation("Subscription has no external id and cannot be updated")
	}
	if sub.Status == model.SubscriptionStatusCancelled {
		return nil, apperr.Validation("Cancelled subscriptions cannot be updated")
	}

	if input.Price != sub.Price && len(sub.Profiles) > 0 {
		priceID, err := s.gateway.CreateCustomPrice(
			fmt.Sprintf("Plano Plus Personalizado Atualizado - %s", sub.Profiles[0].User.FullName),
			input.Price,
			payment.Recurring{Interval: "month", IntervalCount: 1},
			map[string]string{"planType": input.PlanType, "isCustom": "true"},
		)
		if err != nil {
			return nil, apperr.Upstream("Could not create updated price", err)
		}
		if err := s.gateway.UpdateSubscriptionPrice(*sub.ExternalID, priceID); err != nil {
			return nil, apperr.Upstream("Could not update provider subscription", err)
		}
	}

	if input.Status == model.SubscriptionStatusCancelled {
		if err := s.gateway.CancelSubscription(*sub.ExternalID); err != nil {
			return nil, apperr.Upstream("Could not cancel provider subscription", err)
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sub).Updates(map[string]interface{}{
			"price":     input.Price,
			"status":    input.Status,
			"plan_type": input.PlanType,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.SubscriptionLimit{}).
			Where("subscription_id = ?", sub.ID).
			Updates(map[string]interface{}{
				"max_students":          input.Limits.MaxStudents,
				"max_pei_per_trimester": input.Limits.MaxPeiPerTrimester,
				"max_weekly_plans":      input.Limits.MaxWeeklyPlans,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&model.SubscriptionFeature{}).
			Where("subscription_id = ?", sub.ID).
			Update("premium_support", input.Features.PremiumSupport).Error
	})
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

// RemoveSubscription deletes a subscription, cancelling upstream first unless
// it is already cancelled.
func (s *Service) RemoveSubscription(id uint) error {
	var sub model.Subscription
	err := s.db.First(&sub, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Subscription not found")
		}
		return err
	}

	if sub.ExternalID != nil && sub.Status != model.SubscriptionStatusCancelled {
		if err := s.gateway.CancelSubscription(*sub.ExternalID); err != nil {
			log.Printf("Error cancelling subscription %s upstream: %v", *sub.ExternalID, err)
			return apperr.Upstream("Could not cancel provider subscription", err)
		}
	}

	return deleteSubscription(s.db, sub.ID)
}

// deleteSubscription removes a subscription together with its limit and
// feature sub-records.
func deleteSubscription(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ?", id).Delete(&model.SubscriptionLimit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subscription_id = ?", id).Delete(&model.SubscriptionFeature{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Subscription{}, id).Error
	})
}
