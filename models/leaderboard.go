package models

import "time"

// LeaderboardEntry is a denormalized, read-optimized snapshot of a
// quest's standings. The whole set for a quest is cleared and
// rewritten on every update; QuestParticipant.Score stays the source
// of truth.
type LeaderboardEntry struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	QuestID       string     `json:"quest_id" gorm:"not null;index"`
	UserID        string     `json:"user_id" gorm:"not null;index"`
	Username      string     `json:"username"`
	Score         int64      `json:"score"`
	Rank          int        `json:"rank"`
	LastReplyAt   *time.Time `json:"last_reply_at,omitempty"`
	TotalMessages int        `json:"total_messages"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
