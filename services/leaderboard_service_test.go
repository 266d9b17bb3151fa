package services

import (
	"testing"
	"time"

	"quest-economy-system/models"
)

func newLeaderboardService(t *testing.T) *LeaderboardService {
	t.Helper()
	db := newTestDB(t)
	quests := NewQuestService(db, NewRewardService(db))
	return NewLeaderboardService(db, quests)
}

func TestUpdateLeaderboardRanksDensely(t *testing.T) {
	lb := newLeaderboardService(t)
	quest := createTestQuest(t, lb.DB, models.DistributionRules{})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	addParticipant(t, lb.DB, quest.ID, "top", 90, base)
	addParticipant(t, lb.DB, quest.ID, "tie-late", 40, base.Add(time.Hour))
	addParticipant(t, lb.DB, quest.ID, "tie-early", 40, base.Add(time.Minute))

	result, err := lb.UpdateLeaderboard(quest.ID)
	if err != nil {
		t.Fatalf("update leaderboard: %v", err)
	}
	if result.QuestEnded {
		t.Error("quest should not end below the completion score")
	}
	if result.MaxScore != 90 || result.ParticipantCount != 3 {
		t.Errorf("unexpected result: %+v", result)
	}

	entries, err := lb.GetLeaderboard(quest.ID, 10)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	want := []struct {
		userID string
		rank   int
	}{
		{"top", 1},
		{"tie-early", 2},
		{"tie-late", 3},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].UserID != w.userID || entries[i].Rank != w.rank {
			t.Errorf("position %d: expected %s rank %d, got %s rank %d",
				i, w.userID, w.rank, entries[i].UserID, entries[i].Rank)
		}
	}
}

func TestUpdateLeaderboardSnapshotRewritten(t *testing.T) {
	lb := newLeaderboardService(t)
	quest := createTestQuest(t, lb.DB, models.DistributionRules{})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := addParticipant(t, lb.DB, quest.ID, "a", 30, base)
	addParticipant(t, lb.DB, quest.ID, "b", 20, base.Add(time.Minute))

	if _, err := lb.UpdateLeaderboard(quest.ID); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// b overtakes a; the snapshot must follow, not accumulate.
	lb.DB.Model(&models.QuestParticipant{}).Where("id = ?", a.ID).Update("score", 10)
	if _, err := lb.UpdateLeaderboard(quest.ID); err != nil {
		t.Fatalf("second update: %v", err)
	}

	entries, err := lb.GetLeaderboard(quest.ID, 10)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected snapshot of 2, got %d", len(entries))
	}
	if entries[0].UserID != "b" || entries[1].UserID != "a" {
		t.Errorf("expected b then a, got %s then %s", entries[0].UserID, entries[1].UserID)
	}
}

func TestUpdateLeaderboardEndsQuestAtCompletionScore(t *testing.T) {
	lb := newLeaderboardService(t)
	quest := createTestQuest(t, lb.DB, models.DistributionRules{
		InitialPool:      mustDecimal(t, "100"),
		RankDistribution: map[string]float64{"1": 100},
	})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	addParticipant(t, lb.DB, quest.ID, "champion", CompletionScore, base)
	addParticipant(t, lb.DB, quest.ID, "second", 10, base.Add(time.Minute))

	result, err := lb.UpdateLeaderboard(quest.ID)
	if err != nil {
		t.Fatalf("update leaderboard: %v", err)
	}
	if !result.QuestEnded {
		t.Fatal("expected quest to end at completion score")
	}

	var q models.Quest
	if err := lb.DB.First(&q, "id = ?", quest.ID).Error; err != nil {
		t.Fatalf("load quest: %v", err)
	}
	if q.Status != models.QuestStatusEnded {
		t.Errorf("expected ended status, got %s", q.Status)
	}

	// Distribution ran exactly once, triggered by the completion rule.
	var rewardCount int64
	lb.DB.Model(&models.QuestReward{}).Where("quest_id = ?", quest.ID).Count(&rewardCount)
	if rewardCount != 1 {
		t.Errorf("expected 1 reward row, got %d", rewardCount)
	}

	// A second update on the ended quest is a no-op.
	again, err := lb.UpdateLeaderboard(quest.ID)
	if err != nil {
		t.Fatalf("update after end: %v", err)
	}
	if !again.QuestEnded {
		t.Error("expected ended flag on post-end update")
	}
	lb.DB.Model(&models.QuestReward{}).Where("quest_id = ?", quest.ID).Count(&rewardCount)
	if rewardCount != 1 {
		t.Errorf("post-end update changed rewards: %d rows", rewardCount)
	}
}

func TestUpdateLeaderboardEmptyQuest(t *testing.T) {
	lb := newLeaderboardService(t)
	quest := createTestQuest(t, lb.DB, models.DistributionRules{})

	result, err := lb.UpdateLeaderboard(quest.ID)
	if err != nil {
		t.Fatalf("update leaderboard: %v", err)
	}
	if result.QuestEnded || result.ParticipantCount != 0 {
		t.Errorf("unexpected result for empty quest: %+v", result)
	}
}

func TestLeaderboardSnapshotCarriesUsernames(t *testing.T) {
	lb := newLeaderboardService(t)
	quest := createTestQuest(t, lb.DB, models.DistributionRules{})
	if _, err := lb.Quests.JoinQuest(quest.ID, "user-1", "alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	now := time.Now()
	lb.DB.Model(&models.QuestParticipant{}).
		Where("quest_id = ? AND user_id = ?", quest.ID, "user-1").
		Updates(map[string]interface{}{"score": 10, "last_reply_at": now})

	if _, err := lb.UpdateLeaderboard(quest.ID); err != nil {
		t.Fatalf("update leaderboard: %v", err)
	}
	entries, err := lb.GetLeaderboard(quest.ID, 10)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alice" {
		t.Errorf("expected snapshot with username alice, got %+v", entries)
	}
}
