package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quest-economy-system/models"
)

func newMessagingFixture(t *testing.T, ai AIClient, rules models.DistributionRules) (*MessagingService, *models.Quest) {
	t.Helper()
	db := newTestDB(t)
	quests := NewQuestService(db, NewRewardService(db))
	credits := NewCreditsService(db)
	leaderboard := NewLeaderboardService(db, quests)
	messaging := NewMessagingService(db, ai, credits, leaderboard)

	quest := createTestQuest(t, db, rules)
	if _, err := quests.JoinQuest(quest.ID, "user-1", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	return messaging, quest
}

func TestSendMessageFullRoundTrip(t *testing.T) {
	ai := &stubAIClient{response: "The Keeper nods.", score: 10}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 2})

	result, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "I seek the hidden door")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if result.Score != 10 || result.TotalScore != 10 {
		t.Errorf("expected score 10/10, got %d/%d", result.Score, result.TotalScore)
	}
	if result.CharacterResponse != "The Keeper nods." {
		t.Errorf("unexpected character response %q", result.CharacterResponse)
	}
	if result.QuestEnded {
		t.Error("quest should not end at score 10")
	}
	if result.Credits == nil || result.Credits.UsedToday != 1 {
		t.Errorf("expected 1 credit spent, got %+v", result.Credits)
	}

	// Both sides of the exchange are persisted; the user message holds
	// the score.
	var messages []models.ChatMessage
	if err := messaging.DB.Where("quest_id = ?", quest.ID).Order("created_at ASC").Find(&messages).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	userMsg, aiMsg := messages[0], messages[1]
	if userMsg.UserID == "" {
		userMsg, aiMsg = messages[1], messages[0]
	}
	if userMsg.Score == nil || *userMsg.Score != 10 {
		t.Errorf("expected user message scored 10, got %v", userMsg.Score)
	}
	if aiMsg.UserID != "" {
		t.Errorf("expected AI message with empty user id, got %q", aiMsg.UserID)
	}

	// Participant bookkeeping moved with the score.
	var participant models.QuestParticipant
	if err := messaging.DB.Where("quest_id = ? AND user_id = ?", quest.ID, "user-1").First(&participant).Error; err != nil {
		t.Fatalf("load participant: %v", err)
	}
	if participant.Score != 10 || participant.LastReplyAt == nil || len(participant.ReplyLog) != 1 {
		t.Errorf("unexpected participant state: score=%d lastReply=%v replies=%d",
			participant.Score, participant.LastReplyAt, len(participant.ReplyLog))
	}

	// Leaderboard snapshot followed.
	var entry models.LeaderboardEntry
	if err := messaging.DB.Where("quest_id = ?", quest.ID).First(&entry).Error; err != nil {
		t.Fatalf("load leaderboard entry: %v", err)
	}
	if entry.Rank != 1 || entry.Score != 10 {
		t.Errorf("unexpected leaderboard entry: rank=%d score=%d", entry.Rank, entry.Score)
	}
}

func TestSendMessageValidation(t *testing.T) {
	ai := &stubAIClient{response: "ok", score: 1}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 2})

	if _, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "   "); err == nil {
		t.Error("expected error for empty message")
	}
	long := strings.Repeat("x", maxMessageLength+1)
	if _, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", long); err == nil {
		t.Error("expected error for oversized message")
	}
	if ai.respondCalls != 0 {
		t.Errorf("AI called %d times for rejected messages", ai.respondCalls)
	}
}

func TestSendMessageCreditGate(t *testing.T) {
	ai := &stubAIClient{response: "ok", score: 1}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 1})

	if _, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "second"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("second send: expected ErrInsufficientCredits, got %v", err)
	}

	// The gated message never reached the AI or the log.
	if ai.respondCalls != 1 {
		t.Errorf("expected 1 AI call, got %d", ai.respondCalls)
	}
	var count int64
	messaging.DB.Model(&models.ChatMessage{}).Where("quest_id = ? AND user_id = ?", quest.ID, "user-1").Count(&count)
	if count != 1 {
		t.Errorf("expected 1 persisted user message, got %d", count)
	}
}

func TestSendMessageAIFailureKeepsMessageAndCredit(t *testing.T) {
	ai := &stubAIClient{respondErr: errors.New("model unavailable")}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 1})

	if _, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "hello"); err == nil {
		t.Fatal("expected AI failure to surface")
	}

	// Partial success: the message stays, the credit does not move.
	var count int64
	messaging.DB.Model(&models.ChatMessage{}).Where("quest_id = ? AND user_id = ?", quest.ID, "user-1").Count(&count)
	if count != 1 {
		t.Errorf("expected persisted user message, got %d rows", count)
	}
	status, err := messaging.Credits.CanSendMessage("user-1", quest.ID)
	if err != nil {
		t.Fatalf("credit status: %v", err)
	}
	if status.UsedToday != 0 {
		t.Errorf("expected no credit spent on AI failure, got used=%d", status.UsedToday)
	}
	var participant models.QuestParticipant
	messaging.DB.Where("quest_id = ? AND user_id = ?", quest.ID, "user-1").First(&participant)
	if participant.Score != 0 {
		t.Errorf("expected score untouched on AI failure, got %d", participant.Score)
	}
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	ai := &stubAIClient{response: "ok", score: 1}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 1})

	if _, err := messaging.SendMessage(context.Background(), quest.ID, "stranger", "let me in"); !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestSendMessageEndedQuest(t *testing.T) {
	ai := &stubAIClient{response: "ok", score: 1}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 1})
	if err := messaging.DB.Model(&models.Quest{}).Where("id = ?", quest.ID).
		Update("status", models.QuestStatusEnded).Error; err != nil {
		t.Fatalf("end quest: %v", err)
	}

	if _, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "too late"); !errors.Is(err, ErrQuestEnded) {
		t.Errorf("expected ErrQuestEnded, got %v", err)
	}
}

func TestSendMessageReachingCompletionEndsQuest(t *testing.T) {
	ai := &stubAIClient{response: "You did it.", score: 100}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{
		DailyCredits:     1,
		InitialPool:      mustDecimal(t, "50"),
		RankDistribution: map[string]float64{"1": 100},
	})

	result, err := messaging.SendMessage(context.Background(), quest.ID, "user-1", "the final answer")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if !result.QuestEnded {
		t.Fatal("expected quest to end at completion score")
	}

	var reward models.QuestReward
	if err := messaging.DB.Where("quest_id = ? AND user_id = ?", quest.ID, "user-1").First(&reward).Error; err != nil {
		t.Fatalf("expected reward distributed: %v", err)
	}
	if !reward.Amount.Equal(mustDecimal(t, "50")) {
		t.Errorf("expected full pool 50, got %s", reward.Amount)
	}
}

func TestRecentHistoryOrderAndRoles(t *testing.T) {
	ai := &stubAIClient{response: "ok", score: 1}
	messaging, quest := newMessagingFixture(t, ai, models.DistributionRules{DailyCredits: 1})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seed := []models.ChatMessage{
		{ID: "m1", QuestID: quest.ID, UserID: "user-1", Content: "first", CreatedAt: base},
		{ID: "m2", QuestID: quest.ID, Content: "reply", CreatedAt: base.Add(time.Second)},
		{ID: "m3", QuestID: quest.ID, UserID: "user-1", Content: "second", CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range seed {
		if err := messaging.DB.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed message %s: %v", seed[i].ID, err)
		}
	}

	history, err := messaging.recentHistory(quest.ID, 2)
	if err != nil {
		t.Fatalf("recent history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Content != "reply" || history[0].Role != "assistant" {
		t.Errorf("unexpected first turn: %+v", history[0])
	}
	if history[1].Content != "second" || history[1].Role != "user" {
		t.Errorf("unexpected second turn: %+v", history[1])
	}
}
