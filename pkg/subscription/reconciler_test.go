package subscription

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peiplan_backend/internal/model"
	"peiplan_backend/internal/testutil"
	"peiplan_backend/pkg/payment"
)

type fakeProvider struct {
	subscriptions map[string]*payment.Subscription
	customers     map[string]*payment.Customer
	cancelled     []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subscriptions: map[string]*payment.Subscription{},
		customers:     map[string]*payment.Customer{},
	}
}

func (f *fakeProvider) RetrieveSubscription(id string) (*payment.Subscription, error) {
	if ps, ok := f.subscriptions[id]; ok {
		return ps, nil
	}
	return &payment.Subscription{ID: id, Status: payment.StatusActive, CurrentPeriodEnd: time.Now().AddDate(0, 1, 0)}, nil
}

func (f *fakeProvider) RetrieveCustomer(id string) (*payment.Customer, error) {
	if c, ok := f.customers[id]; ok {
		return c, nil
	}
	return &payment.Customer{ID: id}, nil
}

func (f *fakeProvider) CancelSubscription(id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func TestHandleSubscriptionCreated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	provider := newFakeProvider()
	reconciler := NewReconciler(db, provider)

	t.Run("active subscription links and activates", func(t *testing.T) {
		director := testutil.TestDirector(t, db)
		teacher := testutil.TestTeacher(t, db, director)
		sub := testutil.TestSubscription(t, db,
			testutil.WithStatus(model.SubscriptionStatusPending),
			testutil.WithCustomerID("cus_1"),
		)
		provider.customers["cus_1"] = &payment.Customer{
			ID:     "cus_1",
			UserID: strconv.FormatUint(uint64(director.UserID), 10),
		}

		periodEnd := time.Now().AddDate(0, 1, 0)
		err := reconciler.HandleSubscriptionCreated(payment.Subscription{
			ID:               "sub_1",
			CustomerID:       "cus_1",
			Status:           payment.StatusActive,
			CurrentPeriodEnd: periodEnd,
		})
		require.NoError(t, err)

		var got model.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, model.SubscriptionStatusActive, got.Status)
		require.NotNil(t, got.ExternalID)
		assert.Equal(t, "sub_1", *got.ExternalID)
		require.NotNil(t, got.EndDate)
		assert.WithinDuration(t, periodEnd, *got.EndDate, time.Second)

		var gotDirector, gotTeacher model.Profile
		require.NoError(t, db.First(&gotDirector, director.ID).Error)
		require.NoError(t, db.First(&gotTeacher, teacher.ID).Error)
		require.NotNil(t, gotDirector.SubscriptionID)
		assert.Equal(t, sub.ID, *gotDirector.SubscriptionID)
		require.NotNil(t, gotTeacher.SubscriptionID)
		assert.Equal(t, sub.ID, *gotTeacher.SubscriptionID)
	})

	t.Run("incomplete subscription links as pending", func(t *testing.T) {
		sub := testutil.TestSubscription(t, db,
			testutil.WithStatus(model.SubscriptionStatusPending),
			testutil.WithCustomerID("cus_2"),
		)

		err := reconciler.HandleSubscriptionCreated(payment.Subscription{
			ID:         "sub_2",
			CustomerID: "cus_2",
			Status:     payment.StatusIncomplete,
		})
		require.NoError(t, err)

		var got model.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, model.SubscriptionStatusPending, got.Status)
		require.NotNil(t, got.ExternalID)
		assert.Equal(t, "sub_2", *got.ExternalID)
	})

	t.Run("unknown customer is ignored", func(t *testing.T) {
		err := reconciler.HandleSubscriptionCreated(payment.Subscription{
			ID:         "sub_x",
			CustomerID: "cus_unknown",
			Status:     payment.StatusActive,
		})
		require.NoError(t, err)
	})
}

func TestHandleSubscriptionUpdatedTransitions(t *testing.T) {
	cases := []struct {
		providerStatus string
		want           string
	}{
		{payment.StatusPastDue, model.SubscriptionStatusPending},
		{payment.StatusUnpaid, model.SubscriptionStatusExpired},
		{payment.StatusIncomplete, model.SubscriptionStatusCancelled},
		{payment.StatusIncompleteExpired, model.SubscriptionStatusCancelled},
		{payment.StatusCanceled, model.SubscriptionStatusCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.providerStatus, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			reconciler := NewReconciler(db, newFakeProvider())

			sub := testutil.TestSubscription(t, db, testutil.WithExternalID("sub_tr"))

			err := reconciler.HandleSubscriptionUpdated(payment.Subscription{
				ID:     "sub_tr",
				Status: tc.providerStatus,
			})
			require.NoError(t, err)

			var got model.Subscription
			require.NoError(t, db.First(&got, sub.ID).Error)
			assert.Equal(t, tc.want, got.Status)
		})
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	provider := newFakeProvider()
	reconciler := NewReconciler(db, provider)

	director := testutil.TestDirector(t, db)
	sub := testutil.TestSubscription(t, db,
		testutil.WithStatus(model.SubscriptionStatusPending),
		testutil.WithExternalID("sub_idem"),
	)
	require.NoError(t, db.Model(&model.Profile{}).Where("id = ?", director.ID).Update("subscription_id", sub.ID).Error)

	firstEnd := time.Now().AddDate(0, 1, 0)
	ps := payment.Subscription{
		ID:               "sub_idem",
		CustomerID:       "cus_idem",
		Status:           payment.StatusActive,
		CurrentPeriodEnd: firstEnd,
	}
	require.NoError(t, reconciler.HandleSubscriptionUpdated(ps))

	// A teacher created later keeps their own other subscription.
	other := testutil.TestSubscription(t, db)
	teacher := testutil.TestTeacher(t, db, director, testutil.WithSubscriptionID(other.ID))

	// Replay must not touch anything.
	ps.CurrentPeriodEnd = firstEnd.AddDate(0, 1, 0)
	require.NoError(t, reconciler.HandleSubscriptionUpdated(ps))

	var got model.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, model.SubscriptionStatusActive, got.Status)
	require.NotNil(t, got.EndDate)
	assert.WithinDuration(t, firstEnd, *got.EndDate, time.Second)

	var gotTeacher model.Profile
	require.NoError(t, db.First(&gotTeacher, teacher.ID).Error)
	require.NotNil(t, gotTeacher.SubscriptionID)
	assert.Equal(t, other.ID, *gotTeacher.SubscriptionID)
}

func TestHandleInvoicePaid(t *testing.T) {
	t.Run("active subscription only refreshes the period end", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		provider := newFakeProvider()
		reconciler := NewReconciler(db, provider)

		sub := testutil.TestSubscription(t, db, testutil.WithExternalID("sub_inv"))
		newEnd := time.Now().AddDate(0, 2, 0)
		provider.subscriptions["sub_inv"] = &payment.Subscription{
			ID:               "sub_inv",
			Status:           payment.StatusActive,
			CurrentPeriodEnd: newEnd,
		}

		require.NoError(t, reconciler.HandleInvoicePaid("sub_inv"))

		var got model.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, model.SubscriptionStatusActive, got.Status)
		require.NotNil(t, got.EndDate)
		assert.WithinDuration(t, newEnd, *got.EndDate, time.Second)
	})

	t.Run("trialing subscription activates with trial window", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		provider := newFakeProvider()
		reconciler := NewReconciler(db, provider)

		sub := testutil.TestSubscription(t, db,
			testutil.WithStatus(model.SubscriptionStatusPending),
			testutil.WithExternalID("sub_trial"),
		)
		trialStart := time.Now().AddDate(0, 0, 10)
		trialEnd := trialStart.AddDate(0, 1, 0)
		provider.subscriptions["sub_trial"] = &payment.Subscription{
			ID:         "sub_trial",
			Status:     payment.StatusTrialing,
			TrialStart: &trialStart,
			TrialEnd:   &trialEnd,
		}

		require.NoError(t, reconciler.HandleInvoicePaid("sub_trial"))

		var got model.Subscription
		require.NoError(t, db.First(&got, sub.ID).Error)
		assert.Equal(t, model.SubscriptionStatusActive, got.Status)
		assert.WithinDuration(t, trialStart, got.StartDate, time.Second)
		require.NotNil(t, got.EndDate)
		assert.WithinDuration(t, trialEnd, *got.EndDate, time.Second)
	})

	t.Run("invoice without a subscription is ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		reconciler := NewReconciler(db, newFakeProvider())
		require.NoError(t, reconciler.HandleInvoicePaid(""))
	})
}

func TestHandleInvoicePaymentFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	reconciler := NewReconciler(db, newFakeProvider())

	// Payment failure parks the subscription in PENDING even when it was
	// already cancelled.
	sub := testutil.TestSubscription(t, db,
		testutil.WithStatus(model.SubscriptionStatusCancelled),
		testutil.WithExternalID("sub_fail"),
	)

	require.NoError(t, reconciler.HandleInvoicePaymentFailed("sub_fail"))

	var got model.Subscription
	require.NoError(t, db.First(&got, sub.ID).Error)
	assert.Equal(t, model.SubscriptionStatusPending, got.Status)
}

func TestExpireOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	provider := newFakeProvider()
	reconciler := NewReconciler(db, provider)

	overdue := testutil.TestSubscription(t, db,
		testutil.WithExternalID("sub_overdue"),
		testutil.WithEndDate(time.Now().AddDate(0, 0, -1)),
	)
	current := testutil.TestSubscription(t, db,
		testutil.WithEndDate(time.Now().AddDate(0, 1, 0)),
	)
	adminSub := testutil.TestSubscription(t, db,
		testutil.WithExternalID("sub_admin"),
		testutil.WithEndDate(time.Now().AddDate(0, 0, -1)),
	)
	admin := testutil.TestDirector(t, db)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", admin.UserID).Update("is_admin", true).Error)
	require.NoError(t, db.Model(&model.Profile{}).Where("id = ?", admin.ID).Update("subscription_id", adminSub.ID).Error)

	require.NoError(t, reconciler.ExpireOverdue(time.Now()))

	var got model.Subscription
	require.NoError(t, db.First(&got, overdue.ID).Error)
	assert.Equal(t, model.SubscriptionStatusExpired, got.Status)
	assert.Contains(t, provider.cancelled, "sub_overdue")

	got = model.Subscription{}
	require.NoError(t, db.First(&got, current.ID).Error)
	assert.Equal(t, model.SubscriptionStatusActive, got.Status)

	// Admin-held subscriptions are never expired by the sweep.
	got = model.Subscription{}
	require.NoError(t, db.First(&got, adminSub.ID).Error)
	assert.Equal(t, model.SubscriptionStatusActive, got.Status)
	assert.NotContains(t, provider.cancelled, "sub_admin")
}

func TestRemoveAbandoned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	reconciler := NewReconciler(db, newFakeProvider())

	orphan := testutil.TestSubscription(t, db, testutil.WithStatus(model.SubscriptionStatusPending))
	owned := testutil.TestSubscription(t, db, testutil.WithStatus(model.SubscriptionStatusPending))
	director := testutil.TestDirector(t, db)
	require.NoError(t, db.Model(&model.Profile{}).Where("id = ?", director.ID).Update("subscription_id", owned.ID).Error)

	// Both rows are younger than a day, so a sweep at now+25h catches them.
	require.NoError(t, reconciler.RemoveAbandoned(time.Now().Add(25*time.Hour)))

	var count int64
	db.Model(&model.Subscription{}).Where("id = ?", orphan.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&model.Subscription{}).Where("id = ?", owned.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// Limit rows of the orphan are gone too.
	db.Model(&model.SubscriptionLimit{}).Where("subscription_id = ?", orphan.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}
