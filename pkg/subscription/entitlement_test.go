package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peiplan_backend/internal/model"
	"peiplan_backend/internal/testutil"
	"peiplan_backend/pkg/apperr"
)

func TestResolveTenant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	checker := NewChecker(db)

	director := testutil.TestDirector(t, db)
	teacher := testutil.TestTeacher(t, db, director)

	t.Run("director resolves to own profile", func(t *testing.T) {
		tenantID, err := checker.ResolveTenant(director.ID)
		require.NoError(t, err)
		assert.Equal(t, director.ID, tenantID)
	})

	t.Run("teacher resolves to director", func(t *testing.T) {
		tenantID, err := checker.ResolveTenant(teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, director.ID, tenantID)
	})

	t.Run("unknown profile is unauthorized", func(t *testing.T) {
		_, err := checker.ResolveTenant(99999)
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	})
}

func TestResolveSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	checker := NewChecker(db)

	t.Run("active subscription is returned", func(t *testing.T) {
		sub := testutil.TestSubscription(t, db)
		director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

		got, err := checker.ResolveSubscription(director.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
		require.NotNil(t, got.Limit)
		require.NotNil(t, got.Feature)
	})

	t.Run("cancelled subscription in grace still resolves", func(t *testing.T) {
		grace := time.Now().AddDate(0, 0, 7)
		sub := testutil.TestSubscription(t, db,
			testutil.WithStatus(model.SubscriptionStatusCancelled),
			testutil.WithEndDate(grace),
		)
		director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

		got, err := checker.ResolveSubscription(director.ID)
		require.NoError(t, err)
		assert.Equal(t, sub.ID, got.ID)
	})

	t.Run("cancelled subscription past its end date does not resolve", func(t *testing.T) {
		past := time.Now().AddDate(0, 0, -1)
		sub := testutil.TestSubscription(t, db,
			testutil.WithStatus(model.SubscriptionStatusCancelled),
			testutil.WithEndDate(past),
		)
		director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

		_, err := checker.ResolveSubscription(director.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("pending subscription does not resolve", func(t *testing.T) {
		sub := testutil.TestSubscription(t, db, testutil.WithStatus(model.SubscriptionStatusPending))
		director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

		_, err := checker.ResolveSubscription(director.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("missing limit row is reported as incomplete", func(t *testing.T) {
		sub := testutil.TestSubscription(t, db)
		require.NoError(t, db.Where("subscription_id = ?", sub.ID).Delete(&model.SubscriptionLimit{}).Error)
		director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))

		_, err := checker.ResolveSubscription(director.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindIncomplete))
	})
}

func TestCheckStudentsLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	checker := NewChecker(db)

	sub := testutil.TestSubscription(t, db, testutil.WithLimits(2, 5, 5))
	director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))
	teacher := testutil.TestTeacher(t, db, director, testutil.WithSubscriptionID(sub.ID))
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)

	t.Run("below the limit passes", func(t *testing.T) {
		testutil.TestStudent(t, db, classroom, teacher)
		require.NoError(t, checker.CheckStudentsLimit(director.ID))
	})

	t.Run("at the limit is rejected", func(t *testing.T) {
		testutil.TestStudent(t, db, classroom, teacher)
		err := checker.CheckStudentsLimit(director.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindLimitExceeded))
	})

	t.Run("zero means unlimited", func(t *testing.T) {
		require.NoError(t, db.Model(&model.SubscriptionLimit{}).
			Where("subscription_id = ?", sub.ID).
			Update("max_students", 0).Error)
		require.NoError(t, checker.CheckStudentsLimit(director.ID))
	})
}

func TestCheckPeisPerTrimesterLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	checker := NewChecker(db)

	sub := testutil.TestSubscription(t, db, testutil.WithLimits(10, 1, 10))
	director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))
	teacher := testutil.TestTeacher(t, db, director, testutil.WithSubscriptionID(sub.ID))
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)
	student := testutil.TestStudent(t, db, classroom, teacher)

	require.NoError(t, checker.CheckPeisPerTrimesterLimit(director.ID))

	record := testutil.TestPEI(t, db, student, teacher)
	err := checker.CheckPeisPerTrimesterLimit(director.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindLimitExceeded))

	// PEIs older than the trailing trimester no longer count.
	require.NoError(t, db.Model(&model.PEI{}).
		Where("id = ?", record.ID).
		Update("created_at", time.Now().AddDate(0, -4, 0)).Error)
	require.NoError(t, checker.CheckPeisPerTrimesterLimit(director.ID))
}

func TestCurrentUsage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	checker := NewChecker(db)

	sub := testutil.TestSubscription(t, db)
	director := testutil.TestDirector(t, db, testutil.WithSubscriptionID(sub.ID))
	teacher := testutil.TestTeacher(t, db, director, testutil.WithSubscriptionID(sub.ID))
	school := testutil.TestSchool(t, db, director)
	classroom := testutil.TestClassroom(t, db, school, director)
	student := testutil.TestStudent(t, db, classroom, teacher)
	testutil.TestPEI(t, db, student, teacher)

	usage, err := checker.CurrentUsage(director.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Students)
	assert.Equal(t, int64(1), usage.PeisInTrimester)
	assert.Equal(t, int64(0), usage.WeeklyPlans)
}
