// services/reward_service.go
package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"quest-economy-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RewardService converts a final ranked participant list plus a
// range-based percentage schedule into concrete wallet credits. The
// whole distribution pass for a quest runs in one transaction: a
// failure partway leaves zero QuestReward rows.
type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// defaultRankDistribution mirrors the platform default schedule.
var defaultRankDistribution = map[string]float64{
	"1":     50.0,
	"2-13":  40.0,
	"14-50": 10.0,
}

// CalculateRangeRewards resolves a rank-distribution schedule against
// the actual participant count.
//
// For a range entry "start-end": pct, the total percentage is divided
// evenly across only the populated ranks in [start, end]. Unpopulated
// ranks consume nothing and their share is NOT redistributed: with
// underpopulated ranges the aggregate distributed percentage can land
// below 100%. Exact-rank entries apply only when a participant holds
// that exact rank.
func CalculateRangeRewards(participantCount int, schedule map[string]float64) map[int]float64 {
	if len(schedule) == 0 {
		schedule = defaultRankDistribution
	}

	percents := make(map[int]float64)
	for key, totalPercent := range schedule {
		if totalPercent <= 0 {
			continue
		}
		if start, end, ok := parseRankRange(key); ok {
			populated := make([]int, 0, end-start+1)
			for rank := start; rank <= end; rank++ {
				if rank >= 1 && rank <= participantCount {
					populated = append(populated, rank)
				}
			}
			if len(populated) == 0 {
				continue
			}
			individual := totalPercent / float64(len(populated))
			for _, rank := range populated {
				percents[rank] = individual
			}
		} else if rank, err := strconv.Atoi(key); err == nil {
			if rank >= 1 && rank <= participantCount {
				percents[rank] = totalPercent
			}
		}
	}
	return percents
}

// parseRankRange parses "2-13" into (2, 13, true).
func parseRankRange(key string) (start, end int, ok bool) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || start < 1 || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// DistributeFinalRewards writes one QuestReward row and one completed
// wallet credit per winning participant, inside tx. participants must
// already be ranked (score desc, earliest last reply breaking ties).
// Callers guard invocation with the quest's ended-status conditional
// update, so this runs at most once per quest.
func (s *RewardService) DistributeFinalRewards(tx *gorm.DB, quest *models.Quest, participants []models.QuestParticipant) ([]models.QuestReward, error) {
	if len(participants) == 0 {
		return nil, nil
	}

	// Total prize = configured initial pool + everything routed to the
	// pool leg of the ledger, derived live.
	var poolSum struct{ Total decimal.NullDecimal }
	err := tx.Model(&models.QuestPool{}).
		Where("quest_id = ?", quest.ID).
		Select("SUM(split_to_pool) AS total").
		Scan(&poolSum).Error
	if err != nil {
		return nil, err
	}
	totalPool := quest.Rules.InitialPool
	if poolSum.Total.Valid {
		totalPool = totalPool.Add(poolSum.Total.Decimal)
	}

	percents := CalculateRangeRewards(len(participants), quest.Rules.RankDistribution)

	now := time.Now()
	rewards := make([]models.QuestReward, 0, len(percents))
	for i, participant := range participants {
		rank := i + 1
		percent, winning := percents[rank]
		if !winning || percent <= 0 {
			continue
		}
		amount := totalPool.Mul(decimal.NewFromFloat(percent)).Div(hundred)

		reward := models.QuestReward{
			ID:      uuid.NewString(),
			QuestID: quest.ID,
			UserID:  participant.UserID,
			Rank:    rank,
			Percent: percent,
			Amount:  amount,
		}
		if err := tx.Create(&reward).Error; err != nil {
			return nil, err
		}
		if err := s.creditWalletTx(tx, participant.UserID, quest.ID, amount, percent, now); err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}

	log.Printf("[Rewards] Quest %s: distributed to %d of %d participants (pool %s)",
		quest.ID, len(rewards), len(participants), totalPool)
	return rewards, nil
}

// creditWalletTx applies one reward payout to a wallet inside the
// distribution transaction, creating the wallet if the winner has
// never held one.
func (s *RewardService) creditWalletTx(tx *gorm.DB, userID, questID string, amount decimal.Decimal, percent float64, now time.Time) error {
	var wallet models.UserWallet
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if err == gorm.ErrRecordNotFound {
		wallet = models.UserWallet{
			ID:      uuid.NewString(),
			UserID:  userID,
			Balance: decimal.Zero,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	before := wallet.Balance
	wallet.Balance = wallet.Balance.Add(amount)
	wallet.TotalEarned = wallet.TotalEarned.Add(amount)
	if err := tx.Save(&wallet).Error; err != nil {
		return err
	}

	return tx.Create(&models.WalletTransaction{
		ID:            uuid.NewString(),
		WalletID:      wallet.ID,
		UserID:        userID,
		Type:          models.TransactionTypeReward,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  wallet.Balance,
		Status:        models.TransactionStatusCompleted,
		QuestID:       questID,
		Description:   fmt.Sprintf("Quest reward from quest %s", questID),
		Metadata: models.TransactionMetadata{
			"quest_id":   questID,
			"percentage": percent,
			"source":     "quest_completion",
		},
		ProcessedAt: &now,
	}).Error
}

// GetQuestRewards returns the distribution audit trail for a quest.
func (s *RewardService) GetQuestRewards(questID string) ([]models.QuestReward, error) {
	var rewards []models.QuestReward
	err := s.DB.Where("quest_id = ?", questID).Order("rank ASC").Find(&rewards).Error
	return rewards, err
}
