package models

import "time"

// ChatMessage is one message in a quest conversation. UserID is empty
// for character (AI) messages. Score is set after the external scorer
// returns, in a separate transaction from the insert, so a slow AI
// call never holds a lock on quest rows.
type ChatMessage struct {
	ID        string    `json:"message_id" gorm:"primaryKey"`
	QuestID   string    `json:"quest_id" gorm:"not null;index"`
	UserID    string    `json:"user_id,omitempty" gorm:"index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Score     *int64    `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// DailyEngagementMessage records a character message pushed to an
// inactive user by the engagement sweep.
type DailyEngagementMessage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"not null;index"`
	QuestID   string    `json:"quest_id,omitempty" gorm:"index"` // empty when the user has no active quest
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
