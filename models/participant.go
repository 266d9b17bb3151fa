package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ReplyEntry is one scored message in a participant's append-only
// reply log.
type ReplyEntry struct {
	MessageID string             `json:"message_id"`
	Content   string             `json:"content"`
	Score     int64              `json:"score"`
	Breakdown map[string]float64 `json:"score_breakdown,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type ReplyLog []ReplyEntry

func (l ReplyLog) Value() (driver.Value, error) {
	if l == nil {
		l = ReplyLog{}
	}
	return json.Marshal(l)
}

func (l *ReplyLog) Scan(value interface{}) error {
	if value == nil {
		*l = ReplyLog{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New("unsupported type for ReplyLog")
}

// QuestParticipant is one user's membership in one quest. Score is
// monotonically increasing and only the scoring pipeline mutates it.
type QuestParticipant struct {
	ID      string `json:"id" gorm:"primaryKey"`
	QuestID string `json:"quest_id" gorm:"not null;index;uniqueIndex:idx_quest_user"`
	UserID  string `json:"user_id" gorm:"not null;index;uniqueIndex:idx_quest_user"`

	Score        int64      `json:"score" gorm:"default:0"`
	ReplyLog     ReplyLog   `json:"reply_log" gorm:"type:jsonb"`
	JoinedAt     time.Time  `json:"joined_at" gorm:"autoCreateTime"`
	LastReplyAt  *time.Time `json:"last_reply_at,omitempty"`
	LastHintSent *time.Time `json:"last_hint_sent,omitempty"`
}
