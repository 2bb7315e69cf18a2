package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusPending   = "PENDING"
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusCancelled = "CANCELLED"
	SubscriptionStatusExpired   = "EXPIRED"
	SubscriptionStatusInactive  = "INACTIVE"
)

// Subscription is shared by a director profile and every teacher profile that
// director created. ExternalID stays nil until the payment provider confirms
// the subscription on its side.
type Subscription struct {
	gorm.Model
	PlanType   string     `json:"plan_type" gorm:"not null"`
	Status     string     `json:"status" gorm:"default:'PENDING'"`
	Price      float64    `json:"price" gorm:"not null"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	ExternalID *string    `json:"external_id" gorm:"uniqueIndex"`
	CustomerID *string    `json:"customer_id" gorm:"index"`

	Limit    *SubscriptionLimit   `json:"limits,omitempty" gorm:"foreignKey:SubscriptionID"`
	Feature  *SubscriptionFeature `json:"features,omitempty" gorm:"foreignKey:SubscriptionID"`
	Profiles []Profile            `json:"profiles,omitempty" gorm:"foreignKey:SubscriptionID"`
}

type SubscriptionLimit struct {
	gorm.Model
	SubscriptionID     uint `json:"subscription_id" gorm:"uniqueIndex;not null"`
	MaxStudents        int  `json:"max_students" gorm:"not null"`
	MaxPeiPerTrimester int  `json:"max_pei_per_trimester" gorm:"not null"`
	MaxWeeklyPlans     int  `json:"max_weekly_plans" gorm:"not null"`
}

type SubscriptionFeature struct {
	gorm.Model
	SubscriptionID uint `json:"subscription_id" gorm:"uniqueIndex;not null"`
	PremiumSupport bool `json:"premium_support" gorm:"default:false"`
}
