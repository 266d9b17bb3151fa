package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"quest-economy-system/models"
	"quest-economy-system/services"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newWorkerDB(t *testing.T) *gorm.DB {
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
		&models.QuestUser{},
		&models.DailyEngagementMessage{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type fakeAI struct {
	text string
	err  error

	lastQuest *models.Quest
	calls     int
}

func (f *fakeAI) Respond(ctx context.Context, quest *models.Quest, userMessage string, history []services.ChatTurn) (string, error) {
	f.calls++
	f.lastQuest = quest
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeAI) Score(ctx context.Context, quest *models.Quest, userMessage string) (*services.ScoreResult, error) {
	return &services.ScoreResult{}, nil
}

func seedUser(t *testing.T, db *gorm.DB, userID string, lastActivity time.Time, engagementEnabled bool) {
	t.Helper()
	user := models.QuestUser{
		ID:                uuid.NewString(),
		UserID:            userID,
		Username:          userID,
		LastActivity:      &lastActivity,
		EngagementEnabled: engagementEnabled,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", userID, err)
	}
}

func TestSweepContactsInactiveUsers(t *testing.T) {
	db := newWorkerDB(t)
	ai := &fakeAI{text: "The realm misses you."}
	worker := NewEngagementWorker(db, ai)
	now := time.Now()

	seedUser(t, db, "dormant", now.Add(-48*time.Hour), true)
	seedUser(t, db, "fresh", now.Add(-time.Hour), true)
	seedUser(t, db, "opted-out", now.Add(-48*time.Hour), false)

	sent, err := worker.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 message sent, got %d", sent)
	}

	var msg models.DailyEngagementMessage
	if err := db.Where("user_id = ?", "dormant").First(&msg).Error; err != nil {
		t.Fatalf("expected engagement message for dormant user: %v", err)
	}
	if msg.Content != "The realm misses you." {
		t.Errorf("unexpected message content %q", msg.Content)
	}
	if msg.QuestID != "" {
		t.Errorf("expected teaser without quest id, got %q", msg.QuestID)
	}

	var count int64
	db.Model(&models.DailyEngagementMessage{}).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 engagement message, got %d", count)
	}
}

func TestSweepDoesNotRecontactWithinWindow(t *testing.T) {
	db := newWorkerDB(t)
	ai := &fakeAI{text: "come back"}
	worker := NewEngagementWorker(db, ai)
	now := time.Now()

	seedUser(t, db, "dormant", now.Add(-48*time.Hour), true)

	if _, err := worker.Sweep(context.Background(), now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	sent, err := worker.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected no re-contact within the window, got %d", sent)
	}
	if ai.calls != 1 {
		t.Errorf("expected 1 AI call, got %d", ai.calls)
	}
}

func TestSweepUsesFirstActiveQuest(t *testing.T) {
	db := newWorkerDB(t)
	ai := &fakeAI{text: "the quest awaits"}
	worker := NewEngagementWorker(db, ai)
	now := time.Now()

	quest := models.Quest{
		ID:     uuid.NewString(),
		Title:  "Dungeon Run",
		Status: models.QuestStatusActive,
		Character: models.CharacterProfile{
			Name: "The Keeper",
		},
	}
	if err := db.Create(&quest).Error; err != nil {
		t.Fatalf("create quest: %v", err)
	}
	participant := models.QuestParticipant{
		ID:       uuid.NewString(),
		QuestID:  quest.ID,
		UserID:   "dormant",
		ReplyLog: models.ReplyLog{},
	}
	if err := db.Create(&participant).Error; err != nil {
		t.Fatalf("create participant: %v", err)
	}
	seedUser(t, db, "dormant", now.Add(-48*time.Hour), true)

	sent, err := worker.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 message sent, got %d", sent)
	}
	if ai.lastQuest == nil || ai.lastQuest.ID != quest.ID {
		t.Errorf("expected AI prompted with quest %s", quest.ID)
	}

	var msg models.DailyEngagementMessage
	if err := db.Where("user_id = ?", "dormant").First(&msg).Error; err != nil {
		t.Fatalf("load engagement message: %v", err)
	}
	if msg.QuestID != quest.ID {
		t.Errorf("expected message tied to quest %s, got %q", quest.ID, msg.QuestID)
	}
}

func TestSweepContinuesPastAIFailure(t *testing.T) {
	db := newWorkerDB(t)
	ai := &fakeAI{err: errors.New("model unavailable")}
	worker := NewEngagementWorker(db, ai)
	now := time.Now()

	seedUser(t, db, "dormant", now.Add(-48*time.Hour), true)

	sent, err := worker.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected no messages on AI failure, got %d", sent)
	}

	// The user stays eligible for the next sweep.
	var user models.QuestUser
	if err := db.Where("user_id = ?", "dormant").First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.LastEngagementAt != nil {
		t.Error("expected last_engagement_at untouched on failure")
	}
}
