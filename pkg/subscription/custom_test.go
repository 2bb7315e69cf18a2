package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peiplan_backend/internal/model"
	"peiplan_backend/internal/testutil"
	"peiplan_backend/pkg/apperr"
	"peiplan_backend/pkg/payment"
	"peiplan_backend/pkg/plan"
)

type fakeGateway struct {
	fakeProvider
	activeSub    *payment.Subscription
	lastCheckout payment.CheckoutParams
	priceUpdates map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		fakeProvider: *newFakeProvider(),
		priceUpdates: map[string]string{},
	}
}

func (f *fakeGateway) GetOrCreateCustomer(email, fullName string, userID uint) (*payment.Customer, error) {
	return &payment.Customer{ID: "cus_fake", Email: email}, nil
}

func (f *fakeGateway) GetOrCreatePlanPrice(planType string, amount float64) (string, error) {
	return "price_" + planType, nil
}

func (f *fakeGateway) CreateCustomPrice(name string, amount float64, recurring payment.Recurring, metadata map[string]string) (string, error) {
	return "price_custom", nil
}

func (f *fakeGateway) CreateCheckoutSession(p payment.CheckoutParams) (*payment.CheckoutSession, error) {
	f.lastCheckout = p
	return &payment.CheckoutSession{ID: "cs_fake", URL: "https://checkout.example/cs_fake"}, nil
}

func (f *fakeGateway) FindActiveSubscription(customerID string) (*payment.Subscription, error) {
	return f.activeSub, nil
}

func (f *fakeGateway) UpdateSubscriptionPrice(id, priceID string) error {
	f.priceUpdates[id] = priceID
	return nil
}

func TestSubscribeToPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newFakeGateway()
	service := NewService(db, gateway)

	director := testutil.TestDirector(t, db)

	t.Run("unknown plan is rejected", func(t *testing.T) {
		_, err := service.SubscribeToPlan(&director.User, plan.Type("GOLD"))
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("custom plus is not subscribable through the catalog", func(t *testing.T) {
		_, err := service.SubscribeToPlan(&director.User, plan.Plus)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("creates a pending local subscription", func(t *testing.T) {
		session, err := service.SubscribeToPlan(&director.User, plan.Premium)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.example/cs_fake", session.URL)

		var sub model.Subscription
		require.NoError(t, db.Preload("Limit").Preload("Feature").
			Where("customer_id = ?", "cus_fake").First(&sub).Error)
		assert.Equal(t, string(plan.Premium), sub.PlanType)
		assert.Equal(t, model.SubscriptionStatusPending, sub.Status)
		assert.Nil(t, sub.ExternalID)
		assert.Equal(t, 697.00, sub.Price)
		require.NotNil(t, sub.Limit)
		assert.Equal(t, 20, sub.Limit.MaxStudents)
		assert.Equal(t, 100, sub.Limit.MaxWeeklyPlans)
		require.NotNil(t, sub.Feature)
		assert.True(t, sub.Feature.PremiumSupport)
	})

	t.Run("resubscribing reuses the local row", func(t *testing.T) {
		_, err := service.SubscribeToPlan(&director.User, plan.Fit)
		require.NoError(t, err)

		var subs []model.Subscription
		require.NoError(t, db.Where("customer_id = ?", "cus_fake").Find(&subs).Error)
		require.Len(t, subs, 1)
		assert.Equal(t, string(plan.Fit), subs[0].PlanType)
		assert.Equal(t, model.SubscriptionStatusPending, subs[0].Status)

		var limit model.SubscriptionLimit
		require.NoError(t, db.Where("subscription_id = ?", subs[0].ID).First(&limit).Error)
		assert.Equal(t, 5, limit.MaxStudents)
	})
}

func TestCancelSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newFakeGateway()
	service := NewService(db, gateway)

	sub := testutil.TestSubscription(t, db,
		testutil.WithCustomerID("cus_cancel"),
		testutil.WithExternalID("sub_cancel"),
	)
	director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))
	gateway.activeSub = &payment.Subscription{ID: "sub_cancel", Status: payment.StatusActive}

	require.NoError(t, service.CancelSubscription(director.ID))

	assert.Contains(t, gateway.cancelled, "sub_cancel")

	var got model.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, model.SubscriptionStatusCancelled, got.Status)
}

func TestCancelSubscriptionWithoutProviderLink(t *testing.T) {
	db := testutil.SetupTestDB(t)
	service := NewService(db, newFakeGateway())

	sub := testutil.TestSubscription(t, db)
	director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

	err := service.CancelSubscription(director.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateCustomSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newFakeGateway()
	service := NewService(db, gateway)

	director := testutil.TestDirector(t, db)
	teacher := testutil.TestTeacher(t, db, director)

	input := CustomSubscriptionInput{
		DirectorID:    director.ID,
		Price:         899.00,
		StartDate:     time.Now().AddDate(0, 0, 15),
		EndDate:       time.Now().AddDate(1, 0, 0),
		Frequency:     1,
		FrequencyType: "month",
		Limits:        plan.Limits{MaxStudents: 50, MaxPeiPerTrimester: 50, MaxWeeklyPlans: 200},
		Features:      plan.Features{PremiumSupport: true},
	}

	session, err := service.CreateCustomSubscription(input)
	require.NoError(t, err)
	assert.Equal(t, "cs_fake", session.ID)

	var sub model.Subscription
	require.NoError(t, db.Preload("Limit").Preload("Feature").
		Where("customer_id = ?", "cus_fake").First(&sub).Error)
	assert.Equal(t, string(plan.Plus), sub.PlanType)
	assert.Equal(t, model.SubscriptionStatusPending, sub.Status)
	assert.Equal(t, 899.00, sub.Price)
	assert.Equal(t, 50, sub.Limit.MaxStudents)
	assert.True(t, sub.Feature.PremiumSupport)

	// Director and every teacher they created are linked immediately.
	var gotDirector, gotTeacher model.Profile
	require.NoError(t, db.First(&gotDirector, director.ID).Error)
	require.NoError(t, db.First(&gotTeacher, teacher.ID).Error)
	require.NotNil(t, gotDirector.SubscriptionID)
	assert.Equal(t, sub.ID, *gotDirector.SubscriptionID)
	require.NotNil(t, gotTeacher.SubscriptionID)
	assert.Equal(t, sub.ID, *gotTeacher.SubscriptionID)

	// A future start date defers billing via a trial.
	require.NotNil(t, gateway.lastCheckout.TrialEnd)
	assert.WithinDuration(t, input.StartDate, *gateway.lastCheckout.TrialEnd, time.Second)

	t.Run("replaces a previous subscription for the same customer", func(t *testing.T) {
		require.NoError(t, db.Model(&model.Subscription{}).
			Where("id = ?", sub.ID).
			Update("external_id", "sub_old").Error)

		input.StartDate = time.Now()
		_, err := service.CreateCustomSubscription(input)
		require.NoError(t, err)

		assert.Contains(t, gateway.cancelled, "sub_old")

		var count int64
		db.Model(&model.Subscription{}).Where("customer_id = ?", "cus_fake").Count(&count)
		assert.Equal(t, int64(1), count)

		// Immediate start means no trial.
		assert.Nil(t, gateway.lastCheckout.TrialEnd)
	})
}

func TestUpdateSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newFakeGateway()
	service := NewService(db, gateway)

	sub := testutil.TestSubscription(t, db,
		testutil.WithPlanType(string(plan.Plus)),
		testutil.WithExternalID("sub_upd"),
	)
	testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

	input := UpdateSubscriptionInput{
		Price:    1200.00,
		Status:   model.SubscriptionStatusActive,
		PlanType: string(plan.Plus),
		Limits:   plan.Limits{MaxStudents: 80, MaxPeiPerTrimester: 80, MaxWeeklyPlans: 300},
		Features: plan.Features{PremiumSupport: true},
	}

	got, err := service.UpdateSubscription(sub.ID, input)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	// Price changed, so the provider subscription moved to a fresh price.
	assert.Equal(t, "price_custom", gateway.priceUpdates["sub_upd"])

	var limit model.SubscriptionLimit
	require.NoError(t, db.Where("subscription_id = ?", sub.ID).First(&limit).Error)
	assert.Equal(t, 80, limit.MaxStudents)

	t.Run("cancelled subscriptions cannot be updated", func(t *testing.T) {
		require.NoError(t, db.Model(&model.Subscription{}).
			Where("id = ?", sub.ID).
			Update("status", model.SubscriptionStatusCancelled).Error)

		_, err := service.UpdateSubscription(sub.ID, input)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestRemoveSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := newFakeGateway()
	service := NewService(db, gateway)

	sub := testutil.TestSubscription(t, db, testutil.WithExternalID("sub_rm"))

	require.NoError(t, service.RemoveSubscription(sub.ID))

	assert.Contains(t, gateway.cancelled, "sub_rm")

	var count int64
	db.Model(&model.Subscription{}).Where("id = ?", sub.ID).Count(&count)
	assert.Equal(t, int64(0), count)
	db.Model(&model.SubscriptionLimit{}).Where("subscription_id = ?", sub.ID).Count(&count)
	assert.Equal(t, int64(0), count)
	db.Model(&model.SubscriptionFeature{}).Where("subscription_id = ?", sub.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}
