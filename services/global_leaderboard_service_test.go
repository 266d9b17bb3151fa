package services

import (
	"errors"
	"testing"
	"time"

	"quest-economy-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestRebuildAggregatesAcrossQuests(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)

	questA := createTestQuest(t, db, models.DistributionRules{})
	questB := createTestQuest(t, db, models.DistributionRules{})
	now := time.Now()

	createTestUser(t, db, "alice", "Alice")
	createTestUser(t, db, "bob", "Bob")
	addParticipant(t, db, questA.ID, "alice", 80, now)
	addParticipant(t, db, questB.ID, "alice", 60, now)
	addParticipant(t, db, questA.ID, "bob", 90, now)

	count, err := svc.Rebuild()
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if count != 2 {
		t.Fatalf("ranked users = %d, want 2", count)
	}

	entries, err := svc.GetGlobalLeaderboard(10)
	if err != nil {
		t.Fatalf("GetGlobalLeaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	// bob averages 90 over one quest, alice 70 over two.
	if entries[0].UserID != "bob" || entries[0].Rank != 1 {
		t.Fatalf("rank 1 = %s (rank %d), want bob rank 1", entries[0].UserID, entries[0].Rank)
	}
	if entries[0].AverageScore != 90 {
		t.Fatalf("bob average = %v, want 90", entries[0].AverageScore)
	}
	if entries[1].UserID != "alice" || entries[1].Rank != 2 {
		t.Fatalf("rank 2 = %s (rank %d), want alice rank 2", entries[1].UserID, entries[1].Rank)
	}
	if entries[1].TotalScore != 140 || entries[1].QuestsParticipated != 2 {
		t.Fatalf("alice totals = %d over %d quests, want 140 over 2",
			entries[1].TotalScore, entries[1].QuestsParticipated)
	}
	if entries[1].AverageScore != 70 {
		t.Fatalf("alice average = %v, want 70", entries[1].AverageScore)
	}
	if entries[0].Username != "Bob" {
		t.Fatalf("rank 1 username = %q, want Bob", entries[0].Username)
	}
}

func TestRebuildReplacesPreviousSnapshot(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)

	quest := createTestQuest(t, db, models.DistributionRules{})
	now := time.Now()
	addParticipant(t, db, quest.ID, "alice", 50, now)

	if _, err := svc.Rebuild(); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	addParticipant(t, db, quest.ID, "bob", 75, now)
	if _, err := svc.Rebuild(); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	var total int64
	db.Model(&models.GlobalLeaderboardEntry{}).Count(&total)
	if total != 2 {
		t.Fatalf("entries after second rebuild = %d, want 2 (no duplicates)", total)
	}

	stats, err := svc.GetUserStats("bob")
	if err != nil {
		t.Fatalf("GetUserStats: %v", err)
	}
	if stats.Rank != 1 {
		t.Fatalf("bob rank = %d, want 1", stats.Rank)
	}
}

func TestGetUserStatsUnknownUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)
	if _, err := svc.GetUserStats("ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func seedGlobalTopThree(t *testing.T, db *gorm.DB, svc *GlobalLeaderboardService) {
	t.Helper()
	quest := createTestQuest(t, db, models.DistributionRules{})
	now := time.Now()
	createTestUser(t, db, "first", "First")
	createTestUser(t, db, "second", "Second")
	createTestUser(t, db, "third", "Third")
	addParticipant(t, db, quest.ID, "first", 90, now)
	addParticipant(t, db, quest.ID, "second", 80, now)
	addParticipant(t, db, quest.ID, "third", 70, now)
	if _, err := svc.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
}

func TestProcessDailyBonusesPaysTopThree(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)
	seedGlobalTopThree(t, db, svc)

	if _, err := svc.SetBonusConfig(
		decimal.NewFromInt(5), decimal.NewFromInt(3), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("SetBonusConfig: %v", err)
	}

	now := time.Now()
	bonuses, err := svc.ProcessDailyBonuses(now)
	if err != nil {
		t.Fatalf("ProcessDailyBonuses: %v", err)
	}
	if len(bonuses) != 3 {
		t.Fatalf("bonuses = %d, want 3", len(bonuses))
	}

	wallets := NewWalletService(db)
	wants := map[string]int64{"first": 5, "second": 3, "third": 1}
	for userID, want := range wants {
		wallet, err := wallets.GetOrCreateWallet(userID)
		if err != nil {
			t.Fatalf("wallet %s: %v", userID, err)
		}
		if !wallet.Balance.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("%s balance = %s, want %d", userID, wallet.Balance, want)
		}
		if !wallet.TotalEarned.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("%s total_earned = %s, want %d", userID, wallet.TotalEarned, want)
		}
	}

	var txns []models.WalletTransaction
	db.Where("transaction_type = ?", models.TransactionTypeDailyBonus).Find(&txns)
	if len(txns) != 3 {
		t.Fatalf("daily_bonus transactions = %d, want 3", len(txns))
	}
	for _, txn := range txns {
		if txn.Status != models.TransactionStatusCompleted {
			t.Fatalf("transaction %s status = %s, want completed", txn.ID, txn.Status)
		}
	}

	var rows []models.GlobalDailyBonus
	db.Order("rank ASC").Find(&rows)
	if len(rows) != 3 || rows[0].UserID != "first" || rows[0].Rank != 1 {
		t.Fatalf("bonus rows = %+v, want first at rank 1", rows)
	}
	if rows[0].Status != models.TransactionStatusCompleted {
		t.Fatalf("bonus status = %s, want completed", rows[0].Status)
	}
}

func TestProcessDailyBonusesOncePerDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)
	seedGlobalTopThree(t, db, svc)
	if _, err := svc.SetBonusConfig(
		decimal.NewFromInt(5), decimal.NewFromInt(3), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("SetBonusConfig: %v", err)
	}

	now := time.Now()
	if _, err := svc.ProcessDailyBonuses(now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := svc.ProcessDailyBonuses(now); !errors.Is(err, ErrBonusAlreadyProcessed) {
		t.Fatalf("second run err = %v, want ErrBonusAlreadyProcessed", err)
	}

	wallets := NewWalletService(db)
	wallet, err := wallets.GetOrCreateWallet("first")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance after duplicate run = %s, want 5", wallet.Balance)
	}
}

func TestProcessDailyBonusesGuards(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)

	if _, err := svc.ProcessDailyBonuses(time.Now()); !errors.Is(err, ErrNoActiveBonusConfig) {
		t.Fatalf("no config err = %v, want ErrNoActiveBonusConfig", err)
	}

	if _, err := svc.SetBonusConfig(
		decimal.NewFromInt(5), decimal.NewFromInt(3), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("SetBonusConfig: %v", err)
	}
	// Only two ranked users.
	quest := createTestQuest(t, db, models.DistributionRules{})
	now := time.Now()
	addParticipant(t, db, quest.ID, "first", 90, now)
	addParticipant(t, db, quest.ID, "second", 80, now)
	if _, err := svc.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if _, err := svc.ProcessDailyBonuses(now); !errors.Is(err, ErrNotEnoughRankedUsers) {
		t.Fatalf("short leaderboard err = %v, want ErrNotEnoughRankedUsers", err)
	}
}

func TestSetBonusConfigDeactivatesPrevious(t *testing.T) {
	db := newTestDB(t)
	svc := NewGlobalLeaderboardService(db)

	if _, err := svc.SetBonusConfig(
		decimal.NewFromInt(5), decimal.NewFromInt(3), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("first config: %v", err)
	}
	if _, err := svc.SetBonusConfig(
		decimal.NewFromInt(10), decimal.NewFromInt(6), decimal.NewFromInt(2)); err != nil {
		t.Fatalf("second config: %v", err)
	}

	config, err := svc.GetBonusConfig()
	if err != nil {
		t.Fatalf("GetBonusConfig: %v", err)
	}
	if !config.Rank1Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("active rank 1 amount = %s, want 10", config.Rank1Amount)
	}

	var active int64
	db.Model(&models.DailyBonusConfig{}).Where("is_active = ?", true).Count(&active)
	if active != 1 {
		t.Fatalf("active configs = %d, want 1", active)
	}

	if _, err := svc.SetBonusConfig(
		decimal.NewFromInt(-1), decimal.NewFromInt(0), decimal.NewFromInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount err = %v, want ErrInvalidAmount", err)
	}
}
