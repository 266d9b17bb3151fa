package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDistributionRulesValidate(t *testing.T) {
	pct := func(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

	cases := []struct {
		name    string
		rules   DistributionRules
		wantErr bool
	}{
		{"zero value falls back to defaults", DistributionRules{}, false},
		{"valid 10/90", DistributionRules{TreasuryPercentage: pct(10), UserPercentage: pct(90)}, false},
		{"valid 0/100", DistributionRules{UserPercentage: pct(100)}, false},
		{"does not sum to 100", DistributionRules{TreasuryPercentage: pct(10), UserPercentage: pct(80)}, true},
		{"negative leg", DistributionRules{TreasuryPercentage: pct(-10), UserPercentage: pct(110)}, true},
		{"negative initial pool", DistributionRules{TreasuryPercentage: pct(10), UserPercentage: pct(90), InitialPool: pct(-1)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rules.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDistributionRulesRoundTrip(t *testing.T) {
	rules := DistributionRules{
		TreasuryPercentage: decimal.NewFromInt(10),
		UserPercentage:     decimal.NewFromInt(90),
		InitialPool:        decimal.NewFromInt(500),
		RankDistribution:   map[string]float64{"1": 50, "2-13": 40},
		DailyCredits:       3,
	}
	value, err := rules.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var back DistributionRules
	if err := back.Scan(value); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !back.TreasuryPercentage.Equal(rules.TreasuryPercentage) || back.DailyCredits != 3 {
		t.Errorf("round trip lost data: %+v", back)
	}
	if back.RankDistribution["2-13"] != 40 {
		t.Errorf("round trip lost rank distribution: %+v", back.RankDistribution)
	}
}

func TestCharacterProfileValidate(t *testing.T) {
	cases := []struct {
		name    string
		profile CharacterProfile
		wantErr bool
	}{
		{"minimal", CharacterProfile{Name: "The Keeper"}, false},
		{"missing name", CharacterProfile{Personality: "wise"}, true},
		{
			"criteria sum to one",
			CharacterProfile{Name: "x", ScoringCriteria: map[string]float64{"wit": 0.5, "depth": 0.5}},
			false,
		},
		{
			"criteria sum off",
			CharacterProfile{Name: "x", ScoringCriteria: map[string]float64{"wit": 0.5, "depth": 0.4}},
			true,
		},
		{
			"negative weight",
			CharacterProfile{Name: "x", ScoringCriteria: map[string]float64{"wit": 1.5, "depth": -0.5}},
			true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.profile.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestQuestScheduledAndExpired(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	q := Quest{Status: QuestStatusActive, StartDate: &future}
	if !q.Scheduled(now) {
		t.Error("quest starting in the future should be scheduled")
	}
	q.StartDate = &past
	if q.Scheduled(now) {
		t.Error("quest already started should not be scheduled")
	}

	q.EndDate = &past
	if !q.Expired(now) {
		t.Error("active quest past its end date should be expired")
	}
	q.IsPaused = true
	if q.Expired(now) {
		t.Error("paused quest should never expire")
	}
	q.IsPaused = false
	q.Status = QuestStatusEnded
	if q.Expired(now) {
		t.Error("ended quest should not report expired")
	}
	q.Status = QuestStatusActive
	q.EndDate = nil
	if q.Expired(now) {
		t.Error("quest without end date should not expire")
	}
}
