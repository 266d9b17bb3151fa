package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuestStatus is the lifecycle state of a quest.
// "scheduled" is derived (start_date in the future), never stored.
type QuestStatus string

const (
	QuestStatusActive  QuestStatus = "active"
	QuestStatusStalled QuestStatus = "stalled" // paused
	QuestStatusEnded   QuestStatus = "ended"   // terminal
)

// CharacterProfile describes the AI character attached to a quest.
// Stored as a JSON column but always validated at creation time,
// never an untyped map.
type CharacterProfile struct {
	Name            string             `json:"name"`
	Personality     string             `json:"personality,omitempty"`
	Background      string             `json:"background,omitempty"`
	Wallet          string             `json:"wallet,omitempty"`
	Instructions    string             `json:"instructions,omitempty"`
	ScoringCriteria map[string]float64 `json:"scoring_criteria,omitempty"`
}

func (p CharacterProfile) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *CharacterProfile) Scan(value interface{}) error {
	if value == nil {
		*p = CharacterProfile{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return errors.New("unsupported type for CharacterProfile")
}

// Validate checks the minimum character config an admin must supply.
func (p CharacterProfile) Validate() error {
	if p.Name == "" {
		return errors.New("character name is required")
	}
	var total float64
	for criterion, weight := range p.ScoringCriteria {
		if weight < 0 {
			return fmt.Errorf("scoring criterion %q has negative weight", criterion)
		}
		total += weight
	}
	if len(p.ScoringCriteria) > 0 && (total < 0.999 || total > 1.001) {
		return fmt.Errorf("scoring criteria weights must sum to 1.0, got %.3f", total)
	}
	return nil
}

// DistributionRules configures how money entering a quest is split and
// how the final pool is paid out by rank.
//
// RankDistribution keys are either an exact rank ("1") or an inclusive
// range ("2-13"); values are the total percentage allocated to that
// rank or range.
type DistributionRules struct {
	TreasuryPercentage decimal.Decimal    `json:"treasury_percentage"`
	UserPercentage     decimal.Decimal    `json:"user_percentage"`
	InitialPool        decimal.Decimal    `json:"initial_pool"`
	RankDistribution   map[string]float64 `json:"rank_distribution,omitempty"`
	DailyCredits       int                `json:"daily_credits,omitempty"`
}

func (r DistributionRules) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *DistributionRules) Scan(value interface{}) error {
	if value == nil {
		*r = DistributionRules{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	}
	return errors.New("unsupported type for DistributionRules")
}

// Validate enforces the 100% split invariant. Zero-value rules are
// allowed: the splitter falls back to the 10/90 default.
func (r DistributionRules) Validate() error {
	if r.TreasuryPercentage.IsZero() && r.UserPercentage.IsZero() {
		return nil
	}
	if r.TreasuryPercentage.IsNegative() || r.UserPercentage.IsNegative() {
		return errors.New("split percentages must be non-negative")
	}
	if !r.TreasuryPercentage.Add(r.UserPercentage).Equal(decimal.NewFromInt(100)) {
		return errors.New("treasury_percentage and user_percentage must sum to 100")
	}
	if r.InitialPool.IsNegative() {
		return errors.New("initial_pool must be non-negative")
	}
	return nil
}

// Quest is a time-boxed challenge with an AI character and a pooled
// prize. Pause/resume bookkeeping preserves the total active window:
// original_end_date is captured exactly once, before the first pause,
// and end_date is recomputed from it on every resume.
type Quest struct {
	ID              string            `json:"id" gorm:"primaryKey"`
	Title           string            `json:"title" gorm:"not null"`
	Slug            string            `json:"slug" gorm:"index"`
	Description     string            `json:"description" gorm:"type:text"`
	Context         string            `json:"context" gorm:"type:text"`
	ProfileImageURL string            `json:"profile_image_url"`
	MediaURL        string            `json:"media_url"`
	Character       CharacterProfile  `json:"character" gorm:"type:jsonb"`
	Rules           DistributionRules `json:"distribution_rules" gorm:"column:distribution_rules;type:jsonb"`

	Status          QuestStatus `json:"status" gorm:"type:varchar(16);default:'active';index"`
	StartDate       *time.Time  `json:"start_date,omitempty"`
	EndDate         *time.Time  `json:"end_date,omitempty" gorm:"index"`
	OriginalEndDate *time.Time  `json:"original_end_date,omitempty"`
	IsPaused        bool        `json:"is_paused" gorm:"default:false"`
	PausedAt        *time.Time  `json:"paused_at,omitempty"`
	PausedDuration  int64       `json:"paused_duration" gorm:"default:0"` // cumulative seconds

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Participants []QuestParticipant `json:"participants,omitempty" gorm:"foreignKey:QuestID"`

	// Calculated fields (not stored in DB)
	ParticipantCount int64 `json:"participant_count,omitempty" gorm:"-"`
	MaxScore         int64 `json:"max_score,omitempty" gorm:"-"`
}

// Scheduled reports whether the quest has not started yet. Derived,
// never persisted as a status.
func (q *Quest) Scheduled(now time.Time) bool {
	return q.StartDate != nil && q.StartDate.After(now)
}

// Expired reports wall-clock expiry. A paused quest never expires.
func (q *Quest) Expired(now time.Time) bool {
	if q.IsPaused || q.Status == QuestStatusEnded {
		return false
	}
	return q.EndDate != nil && q.EndDate.Before(now)
}
