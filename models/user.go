package models

import "time"

// QuestUser is a local snapshot of the user data this service needs.
// Identity lives upstream (gateway auth context); this row only tracks
// activity for the engagement sweep.
type QuestUser struct {
	ID                 string     `json:"id" gorm:"primaryKey"`
	UserID             string     `json:"user_id" gorm:"uniqueIndex;not null"` // external identity from gateway
	Username           string     `json:"username" gorm:"index"`
	LastActivity       *time.Time `json:"last_activity,omitempty" gorm:"index"`
	LastEngagementAt   *time.Time `json:"last_engagement_at,omitempty"`
	EngagementEnabled  bool       `json:"engagement_enabled" gorm:"default:true"`
	CreatedAt          time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
