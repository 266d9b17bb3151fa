// services/global_leaderboard_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"quest-economy-system/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// topBonusRanks is how many global ranks the daily bonus pays.
const topBonusRanks = 3

// GlobalLeaderboardService maintains the cross-quest standings and
// pays the daily wallet bonus to the top three. Like the per-quest
// snapshot, the global table is rebuilt wholesale from participant
// rows on every refresh.
type GlobalLeaderboardService struct {
	DB *gorm.DB
}

func NewGlobalLeaderboardService(db *gorm.DB) *GlobalLeaderboardService {
	return &GlobalLeaderboardService{DB: db}
}

// Rebuild recomputes every user's total and average score across all
// quests they ever joined and rewrites the global table. Ranks are a
// dense 1-based sequence ordered by average score; ties break by total
// score, then user ID for determinism. Returns the number of ranked
// users.
func (s *GlobalLeaderboardService) Rebuild() (int, error) {
	var count int
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		type userTotals struct {
			UserID     string
			TotalScore int64
			Quests     int64
		}
		var rows []userTotals
		err := tx.Model(&models.QuestParticipant{}).
			Select("user_id, SUM(score) AS total_score, COUNT(quest_id) AS quests").
			Group("user_id").
			Scan(&rows).Error
		if err != nil {
			return err
		}

		if err := tx.Where("1 = 1").Delete(&models.GlobalLeaderboardEntry{}).Error; err != nil {
			return err
		}

		averages := make(map[string]float64, len(rows))
		for _, r := range rows {
			if r.Quests > 0 {
				averages[r.UserID] = float64(r.TotalScore) / float64(r.Quests)
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			ai, aj := averages[rows[i].UserID], averages[rows[j].UserID]
			if ai != aj {
				return ai > aj
			}
			if rows[i].TotalScore != rows[j].TotalScore {
				return rows[i].TotalScore > rows[j].TotalScore
			}
			return rows[i].UserID < rows[j].UserID
		})

		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.UserID)
		}
		usernames := globalUsernames(tx, ids)
		for i, r := range rows {
			entry := models.GlobalLeaderboardEntry{
				ID:                 uuid.NewString(),
				UserID:             r.UserID,
				Username:           usernames[r.UserID],
				TotalScore:         r.TotalScore,
				QuestsParticipated: r.Quests,
				AverageScore:       averages[r.UserID],
				Rank:               i + 1,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		count = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Printf("[GlobalLeaderboard] rebuilt with %d user(s)", count)
	return count, nil
}

func globalUsernames(tx *gorm.DB, ids []string) map[string]string {
	usernames := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return usernames
	}
	var users []models.QuestUser
	if err := tx.Where("user_id IN ?", ids).Find(&users).Error; err != nil {
		return usernames
	}
	for _, u := range users {
		usernames[u.UserID] = u.Username
	}
	return usernames
}

// GetGlobalLeaderboard returns the current standings, best ranks
// first.
func (s *GlobalLeaderboardService) GetGlobalLeaderboard(limit int) ([]models.GlobalLeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []models.GlobalLeaderboardEntry
	err := s.DB.Order("rank ASC").Limit(limit).Find(&entries).Error
	return entries, err
}

// GetUserStats returns one user's global standing.
func (s *GlobalLeaderboardService) GetUserStats(userID string) (*models.GlobalLeaderboardEntry, error) {
	var entry models.GlobalLeaderboardEntry
	err := s.DB.Where("user_id = ?", userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ProcessDailyBonuses pays the active config's amounts to the current
// top three, once per UTC day. The payout and its once-per-day guard
// live in one transaction; the unique index on (user, bonus_date) is
// the backstop against racing runs.
func (s *GlobalLeaderboardService) ProcessDailyBonuses(now time.Time) ([]models.GlobalDailyBonus, error) {
	day := now.UTC().Format("2006-01-02")
	var bonuses []models.GlobalDailyBonus
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var config models.DailyBonusConfig
		err := tx.Where("is_active = ?", true).First(&config).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveBonusConfig
		}
		if err != nil {
			return err
		}

		var top []models.GlobalLeaderboardEntry
		err = tx.Where("rank <= ?", topBonusRanks).Order("rank ASC").Find(&top).Error
		if err != nil {
			return err
		}
		if len(top) < topBonusRanks {
			return ErrNotEnoughRankedUsers
		}

		var processed int64
		if err := tx.Model(&models.GlobalDailyBonus{}).
			Where("bonus_date = ?", day).
			Count(&processed).Error; err != nil {
			return err
		}
		if processed > 0 {
			return ErrBonusAlreadyProcessed
		}

		amounts := map[int]decimal.Decimal{
			1: config.Rank1Amount,
			2: config.Rank2Amount,
			3: config.Rank3Amount,
		}
		completedAt := now
		for _, entry := range top {
			amount := amounts[entry.Rank]
			bonus := models.GlobalDailyBonus{
				ID:          uuid.NewString(),
				UserID:      entry.UserID,
				BonusDate:   day,
				Rank:        entry.Rank,
				Amount:      amount,
				Status:      models.TransactionStatusCompleted,
				CompletedAt: &completedAt,
			}
			if err := tx.Create(&bonus).Error; err != nil {
				return err
			}
			err := payBonusTx(tx, entry.UserID, amount,
				fmt.Sprintf("Daily bonus for global rank %d", entry.Rank),
				models.TransactionMetadata{
					"source": "global_leaderboard",
					"rank":   entry.Rank,
					"date":   day,
				}, now)
			if err != nil {
				return err
			}
			bonuses = append(bonuses, bonus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Daily bonuses paid to top %d user(s) for %s", len(bonuses), day)
	return bonuses, nil
}

// SetBonusConfig replaces the active daily bonus configuration. The
// previous config row is deactivated, not mutated, so payout history
// stays explainable.
func (s *GlobalLeaderboardService) SetBonusConfig(rank1, rank2, rank3 decimal.Decimal) (*models.DailyBonusConfig, error) {
	if rank1.IsNegative() || rank2.IsNegative() || rank3.IsNegative() {
		return nil, ErrInvalidAmount
	}
	config := &models.DailyBonusConfig{
		ID:          uuid.NewString(),
		Rank1Amount: rank1,
		Rank2Amount: rank2,
		Rank3Amount: rank3,
		IsActive:    true,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DailyBonusConfig{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(config).Error
	})
	if err != nil {
		return nil, err
	}
	return config, nil
}

// GetBonusConfig returns the active configuration.
func (s *GlobalLeaderboardService) GetBonusConfig() (*models.DailyBonusConfig, error) {
	var config models.DailyBonusConfig
	err := s.DB.Where("is_active = ?", true).First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveBonusConfig
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// StartDailyBonusSweep rebuilds the global standings and pays the top
// three shortly after UTC midnight. Both steps tolerate being re-run:
// the rebuild is wholesale and the payout is once-per-day guarded.
func (s *GlobalLeaderboardService) StartDailyBonusSweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(func() {
			if _, err := s.Rebuild(); err != nil {
				log.Printf("[Scheduler] Global leaderboard rebuild failed: %v", err)
				return
			}
			_, err := s.ProcessDailyBonuses(time.Now())
			switch {
			case err == nil:
			case errors.Is(err, ErrBonusAlreadyProcessed),
				errors.Is(err, ErrNoActiveBonusConfig),
				errors.Is(err, ErrNotEnoughRankedUsers):
				// Nothing to pay today.
			default:
				log.Printf("[Scheduler] Daily bonus payout failed: %v", err)
			}
		}),
	)
}

// --- HTTP handlers ---

func (s *GlobalLeaderboardService) GetGlobalLeaderboardEndpoint(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	entries, err := s.GetGlobalLeaderboard(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch global leaderboard"})
	}
	return c.JSON(fiber.Map{
		"leaderboard": entries,
		"total_users": len(entries),
	})
}

func (s *GlobalLeaderboardService) GetUserStatsEndpoint(c *fiber.Ctx) error {
	entry, err := s.GetUserStats(c.Params("user_id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(entry)
}

func (s *GlobalLeaderboardService) RebuildEndpoint(c *fiber.Ctx) error {
	count, err := s.Rebuild()
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message":       "Global leaderboard updated successfully",
		"users_updated": count,
	})
}

func (s *GlobalLeaderboardService) ProcessDailyBonusesEndpoint(c *fiber.Ctx) error {
	bonuses, err := s.ProcessDailyBonuses(time.Now())
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message":         "Daily bonuses processed",
		"bonuses_created": len(bonuses),
		"bonuses":         bonuses,
	})
}

func (s *GlobalLeaderboardService) SetBonusConfigEndpoint(c *fiber.Ctx) error {
	var req struct {
		Rank1Amount decimal.Decimal `json:"rank_1_amount"`
		Rank2Amount decimal.Decimal `json:"rank_2_amount"`
		Rank3Amount decimal.Decimal `json:"rank_3_amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	config, err := s.SetBonusConfig(req.Rank1Amount, req.Rank2Amount, req.Rank3Amount)
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Daily bonus configuration updated",
		"config":  config,
	})
}

func (s *GlobalLeaderboardService) GetBonusConfigEndpoint(c *fiber.Ctx) error {
	config, err := s.GetBonusConfig()
	if err != nil {
		if errors.Is(err, ErrNoActiveBonusConfig) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return questErrorResponse(c, err)
	}
	return c.JSON(config)
}
