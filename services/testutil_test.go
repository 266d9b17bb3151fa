package services

import (
	"context"
	"testing"
	"time"

	"quest-economy-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database per test. Max one open
// connection, otherwise the pool hands out separate empty databases.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Quest{},
		&models.QuestParticipant{},
		&models.QuestPool{},
		&models.QuestReward{},
		&models.UserWallet{},
		&models.WalletTransaction{},
		&models.UserCredits{},
		&models.CreditTransaction{},
		&models.ChatMessage{},
		&models.DailyEngagementMessage{},
		&models.LeaderboardEntry{},
		&models.GlobalLeaderboardEntry{},
		&models.DailyBonusConfig{},
		&models.GlobalDailyBonus{},
		&models.DailyBonus{},
		&models.SpinWheel{},
		&models.SpinAttempt{},
		&models.QuestUser{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// createTestQuest inserts an active quest with the given rules.
func createTestQuest(t *testing.T, db *gorm.DB, rules models.DistributionRules) *models.Quest {
	t.Helper()
	quest := &models.Quest{
		ID:     uuid.NewString(),
		Title:  "Test Quest",
		Slug:   "test-quest",
		Status: models.QuestStatusActive,
		Rules:  rules,
		Character: models.CharacterProfile{
			Name: "The Keeper",
		},
	}
	if err := db.Create(quest).Error; err != nil {
		t.Fatalf("create quest: %v", err)
	}
	return quest
}

// addParticipant inserts a participant with an explicit score and
// last reply time so ranking order is deterministic.
func addParticipant(t *testing.T, db *gorm.DB, questID, userID string, score int64, lastReply time.Time) *models.QuestParticipant {
	t.Helper()
	p := &models.QuestParticipant{
		ID:          uuid.NewString(),
		QuestID:     questID,
		UserID:      userID,
		Score:       score,
		ReplyLog:    models.ReplyLog{},
		LastReplyAt: &lastReply,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create participant %s: %v", userID, err)
	}
	return p
}

// createTestUser seeds the local user snapshot.
func createTestUser(t *testing.T, db *gorm.DB, userID, username string) *models.QuestUser {
	t.Helper()
	now := time.Now()
	user := &models.QuestUser{
		ID:                uuid.NewString(),
		UserID:            userID,
		Username:          username,
		LastActivity:      &now,
		EngagementEnabled: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", userID, err)
	}
	return user
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

// stubAIClient fulfils the AIClient interface without any network.
type stubAIClient struct {
	response   string
	score      int64
	respondErr error
	scoreErr   error

	respondCalls int
	scoreCalls   int
}

func (s *stubAIClient) Respond(ctx context.Context, quest *models.Quest, userMessage string, history []ChatTurn) (string, error) {
	s.respondCalls++
	if s.respondErr != nil {
		return "", s.respondErr
	}
	return s.response, nil
}

func (s *stubAIClient) Score(ctx context.Context, quest *models.Quest, userMessage string) (*ScoreResult, error) {
	s.scoreCalls++
	if s.scoreErr != nil {
		return nil, s.scoreErr
	}
	return &ScoreResult{Score: s.score}, nil
}
