package subscription

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"peiplan_backend/internal/model"
	"peiplan_backend/pkg/apperr"
)

// Checker gates creation endpoints against the tenant's subscription limits.
// Checks are advisory: they run before the insert with no isolation against
// concurrent creates, so a limit can transiently overshoot by the number of
// in-flight requests.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// ResolveTenant maps a profile to the director profile that owns the
// subscription. Teachers resolve to the director that created them.
func (c *Checker) ResolveTenant(profileID uint) (uint, error) {
	var profile model.Profile
	if err := c.db.First(&profile, profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.Unauthorized("Profile not found")
		}
		return 0, err
	}
	return profile.TenantID(), nil
}

// ResolveSubscription returns the subscription currently in force for a
// tenant: ACTIVE, or CANCELLED while still inside its paid period. An ACTIVE
// subscription always wins over a cancelled one in grace.
func (c *Checker) ResolveSubscription(tenantID uint) (*model.Subscription, error) {
	var sub model.Subscription
	err := c.db.
		Joins("JOIN profiles ON profiles.subscription_id = subscriptions.id AND profiles.id = ? AND profiles.deleted_at IS NULL", tenantID).
		Where("subscriptions.status = ? OR (subscriptions.status = ? AND subscriptions.end_date >= ?)",
			model.SubscriptionStatusActive, model.SubscriptionStatusCancelled, time.Now()).
		Order("(subscriptions.status = 'ACTIVE') DESC, subscriptions.created_at DESC").
		Preload("Limit").
		Preload("Feature").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("No active subscription found")
		}
		return nil, err
	}

	if sub.Limit == nil || sub.Feature == nil {
		return nil, apperr.Incomplete("Subscription limits or features missing")
	}

	return &sub, nil
}

func (c *Checker) CheckStudentsLimit(tenantID uint) error {
	sub, err := c.ResolveSubscription(tenantID)
	if err != nil {
		return err
	}

	count, err := c.studentsCount(tenantID)
	if err != nil {
		return err
	}

	if sub.Limit.MaxStudents > 0 && count >= int64(sub.Limit.MaxStudents) {
		return apperr.LimitExceeded("Student limit reached. Please upgrade your subscription to continue.")
	}
	return nil
}

func (c *Checker) CheckWeeklyPlansLimit(tenantID uint) error {
	sub, err := c.ResolveSubscription(tenantID)
	if err != nil {
		return err
	}

	count, err := c.weeklyPlansCount(tenantID)
	if err != nil {
		return err
	}

	if sub.Limit.MaxWeeklyPlans > 0 && count >= int64(sub.Limit.MaxWeeklyPlans) {
		return apperr.LimitExceeded("Weekly plan limit reached. Please upgrade your subscription to continue.")
	}
	return nil
}

// CheckPeisPerTrimesterLimit counts only PEIs created in the trailing three
// months.
func (c *Checker) CheckPeisPerTrimesterLimit(tenantID uint) error {
	sub, err := c.ResolveSubscription(tenantID)
	if err != nil {
		return err
	}

	count, err := c.peisPerTrimesterCount(tenantID)
	if err != nil {
		return err
	}

	if sub.Limit.MaxPeiPerTrimester > 0 && count >= int64(sub.Limit.MaxPeiPerTrimester) {
		return apperr.LimitExceeded("PEI limit for this trimester reached. Please upgrade your subscription to continue.")
	}
	return nil
}

type Usage struct {
	Students        int64 `json:"students"`
	WeeklyPlans     int64 `json:"weekly_plans"`
	PeisInTrimester int64 `json:"peis_in_trimester"`
}

// CurrentUsage reports the counts the limit checks run against.
func (c *Checker) CurrentUsage(tenantID uint) (*Usage, error) {
	students, err := c.studentsCount(tenantID)
	if err != nil {
		return nil, err
	}
	weeklyPlans, err := c.weeklyPlansCount(tenantID)
	if err != nil {
		return nil, err
	}
	peis, err := c.peisPerTrimesterCount(tenantID)
	if err != nil {
		return nil, err
	}

	return &Usage{
		Students:        students,
		WeeklyPlans:     weeklyPlans,
		PeisInTrimester: peis,
	}, nil
}

// studentsCount counts students whose classroom was created by the tenant.
func (c *Checker) studentsCount(tenantID uint) (int64, error) {
	var count int64
	err := c.db.Model(&model.Student{}).
		Joins("JOIN classroom_assignments ON classroom_assignments.student_id = students.id AND classroom_assignments.deleted_at IS NULL").
		Joins("JOIN classrooms ON classrooms.id = classroom_assignments.classroom_id AND classrooms.deleted_at IS NULL").
		Where("classrooms.created_by_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

// weeklyPlansCount counts plans created by any teacher the tenant created.
func (c *Checker) weeklyPlansCount(tenantID uint) (int64, error) {
	var count int64
	err := c.db.Model(&model.WeeklyPlan{}).
		Joins("JOIN profiles ON profiles.id = weekly_plans.created_by_id AND profiles.deleted_at IS NULL").
		Where("profiles.created_by_id = ?", tenantID).
		Count(&count).Error
	return count, err
}

func (c *Checker) peisPerTrimesterCount(tenantID uint) (int64, error) {
	now := time.Now()
	trimesterStart := now.AddDate(0, -3, 0)

	var count int64
	err := c.db.Model(&model.PEI{}).
		Joins("JOIN profiles ON profiles.id = peis.created_by_id AND profiles.deleted_at IS NULL").
		Where("profiles.created_by_id = ?", tenantID).
		Where("peis.created_at >= ? AND peis.created_at <= ?", trimesterStart, now).
		Count(&count).Error
	return count, err
}
