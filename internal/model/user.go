package model

import "gorm.io/gorm"

const (
	RoleDirector = "DIRECTOR"
	RoleTeacher  = "TEACHER"
)

type User struct {
	gorm.Model
	FullName string `json:"full_name" gorm:"not null"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"`
	IsAdmin  bool   `json:"is_admin" gorm:"default:false"`

	Profile *Profile `json:"profile,omitempty"`
}

// Profile carries the school-facing identity of a user. Teachers reference the
// director profile that created them via CreatedByID; a director and all of
// their teachers share one subscription.
type Profile struct {
	gorm.Model
	UserID         uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	Role           string `json:"role" gorm:"not null"`
	AvatarURL      string `json:"avatar_url"`
	SchoolID       *uint  `json:"school_id"`
	CreatedByID    *uint  `json:"created_by_id"`
	SubscriptionID *uint  `json:"subscription_id"`

	User         User          `json:"-" gorm:"foreignKey:UserID"`
	School       *School       `json:"school,omitempty" gorm:"foreignKey:SchoolID"`
	Subscription *Subscription `json:"-" gorm:"foreignKey:SubscriptionID"`
}

func (p *Profile) IsDirector() bool {
	return p.Role == RoleDirector
}

// TenantID resolves the director profile a record belongs to. Teachers act on
// behalf of the director that created them.
func (p *Profile) TenantID() uint {
	if p.Role == RoleTeacher && p.CreatedByID != nil {
		return *p.CreatedByID
	}
	return p.ID
}
