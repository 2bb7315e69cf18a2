package model

import "gorm.io/gorm"

const (
	AIRequestTypePEICreation        = "PEI_CREATION"
	AIRequestTypePEIRenewal         = "PEI_RENEWAL"
	AIRequestTypeWeeklyPlanCreation = "WEEKLY_PLAN_CREATION"

	AIRequestStatusCompleted = "COMPLETED"
	AIRequestStatusError     = "ERROR"
)

// AIRequest is an append-only audit row written for every text-generation
// call, success or failure.
type AIRequest struct {
	gorm.Model
	InputData    string `json:"input_data" gorm:"type:text"`
	OutputData   string `json:"output_data" gorm:"type:text"`
	Type         string `json:"type" gorm:"index;not null"`
	Status       string `json:"status" gorm:"not null"`
	AIModel      string `json:"model" gorm:"column:model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	UserID       uint   `json:"user_id" gorm:"index;not null"`
	SchoolID     *uint  `json:"school_id" gorm:"index"`
}
