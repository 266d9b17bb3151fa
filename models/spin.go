package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PrizeType says what a spin prize pays out.
type PrizeType string

const (
	PrizeTypeTokens  PrizeType = "tokens"  // wallet credit
	PrizeTypeCredits PrizeType = "credits" // message-credit allowance bump
	PrizeTypeNothing PrizeType = "nothing"
)

// Prize is one wheel segment. Probability is a fraction of 1; a
// wheel's prizes must sum to 1 within a small tolerance.
type Prize struct {
	Name        string    `json:"name"`
	Type        PrizeType `json:"type"`
	Value       float64   `json:"value"`
	Probability float64   `json:"probability"`
}

// PrizeList is the wheel's segments, stored as a JSON column.
type PrizeList []Prize

func (l PrizeList) Value() (driver.Value, error) {
	if l == nil {
		l = PrizeList{}
	}
	return json.Marshal(l)
}

func (l *PrizeList) Scan(value interface{}) error {
	if value == nil {
		*l = PrizeList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New("unsupported type for PrizeList")
}

// Validate checks every segment and the probability mass.
func (l PrizeList) Validate() error {
	if len(l) == 0 {
		return errors.New("wheel needs at least one prize")
	}
	var total float64
	for _, p := range l {
		if p.Name == "" {
			return errors.New("prize name is required")
		}
		switch p.Type {
		case PrizeTypeTokens, PrizeTypeCredits, PrizeTypeNothing:
		default:
			return fmt.Errorf("unknown prize type %q", p.Type)
		}
		if p.Probability <= 0 {
			return fmt.Errorf("prize %q must have positive probability", p.Name)
		}
		if p.Value < 0 {
			return fmt.Errorf("prize %q must have non-negative value", p.Name)
		}
		total += p.Probability
	}
	if total < 0.999 || total > 1.001 {
		return fmt.Errorf("prize probabilities must sum to 1.0, got %.3f", total)
	}
	return nil
}

// SpinWheel is an admin-configured reward wheel. Spinning may cost
// wallet tokens and is capped per user per UTC day.
type SpinWheel struct {
	ID             string          `json:"wheel_id" gorm:"primaryKey"`
	Name           string          `json:"name" gorm:"not null"`
	Description    string          `json:"description" gorm:"type:text"`
	IsActive       bool            `json:"is_active" gorm:"default:true;index"`
	MaxSpinsPerDay int             `json:"max_spins_per_day" gorm:"default:1"`
	SpinCost       decimal.Decimal `json:"spin_cost" gorm:"type:decimal(20,8);not null;default:0"`
	Prizes         PrizeList       `json:"prizes" gorm:"type:jsonb"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// SpinAttempt is the immutable record of one spin: what it cost and
// what it paid.
type SpinAttempt struct {
	ID           string          `json:"attempt_id" gorm:"primaryKey"`
	UserID       string          `json:"user_id" gorm:"not null;index"`
	WheelID      string          `json:"wheel_id" gorm:"not null;index"`
	PrizeName    string          `json:"prize_name"`
	PrizeType    PrizeType       `json:"prize_type" gorm:"type:varchar(16)"`
	SpinCost     decimal.Decimal `json:"spin_cost" gorm:"type:decimal(20,8);not null;default:0"`
	TokenReward  decimal.Decimal `json:"token_reward" gorm:"type:decimal(20,8);not null;default:0"`
	CreditReward int             `json:"credit_reward" gorm:"default:0"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
}
