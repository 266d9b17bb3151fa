// services/leaderboard_service.go
package services

import (
	"errors"
	"log"

	"quest-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompletionScore is the score at which a quest ends immediately,
// regardless of its end date.
const CompletionScore = 100

// LeaderboardService derives ranked standings from participant scores
// and detects quest-ending conditions. The persisted leaderboard is a
// read-optimized snapshot, rewritten wholesale on each update;
// QuestParticipant.Score stays the source of truth.
type LeaderboardService struct {
	DB     *gorm.DB
	Quests *QuestService
}

func NewLeaderboardService(db *gorm.DB, quests *QuestService) *LeaderboardService {
	return &LeaderboardService{DB: db, Quests: quests}
}

// UpdateResult reports the outcome of a leaderboard recomputation.
type UpdateResult struct {
	QuestEnded       bool  `json:"quest_ended"`
	MaxScore         int64 `json:"max_score"`
	ParticipantCount int   `json:"participant_count"`
}

// UpdateLeaderboard recomputes the full ranking for a quest and checks
// the completion rule (any score >= CompletionScore ends the quest).
// Ranks are a dense 1-based sequence: ties are ordered by earliest
// last reply, so every participant gets a distinct rank.
//
// Invoked after every scored message and by the expiry sweep. Ending
// goes through QuestService.EndQuest, whose conditional status update
// guarantees the distribution pass runs at most once even when two
// triggers race.
func (s *LeaderboardService) UpdateLeaderboard(questID string) (*UpdateResult, error) {
	quest, err := s.Quests.GetQuest(questID)
	if err != nil {
		return nil, err
	}
	if quest.Status == models.QuestStatusEnded {
		return &UpdateResult{QuestEnded: true}, nil
	}

	participants, err := rankedParticipants(s.DB, questID)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return &UpdateResult{}, nil
	}

	maxScore := participants[0].Score
	result := &UpdateResult{
		MaxScore:         maxScore,
		ParticipantCount: len(participants),
	}

	if maxScore >= CompletionScore {
		if _, _, err := s.Quests.EndQuest(questID); err != nil {
			if !errors.Is(err, ErrQuestEnded) {
				return nil, err
			}
			// Another trigger won the race; the quest is ended either way.
		} else {
			log.Printf("[Leaderboard] Quest %s ended: score %d reached completion threshold", questID, maxScore)
		}
		result.QuestEnded = true
	}

	if err := s.rewriteSnapshot(questID, participants); err != nil {
		return nil, err
	}
	return result, nil
}

// rewriteSnapshot clears and rewrites the denormalized leaderboard
// rows for one quest.
func (s *LeaderboardService) rewriteSnapshot(questID string, participants []models.QuestParticipant) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quest_id = ?", questID).Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		usernames := s.usernamesFor(tx, participants)
		for i, p := range participants {
			entry := models.LeaderboardEntry{
				ID:            uuid.NewString(),
				QuestID:       questID,
				UserID:        p.UserID,
				Username:      usernames[p.UserID],
				Score:         p.Score,
				Rank:          i + 1,
				LastReplyAt:   p.LastReplyAt,
				TotalMessages: len(p.ReplyLog),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LeaderboardService) usernamesFor(tx *gorm.DB, participants []models.QuestParticipant) map[string]string {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	usernames := make(map[string]string, len(ids))
	var users []models.QuestUser
	if err := tx.Where("user_id IN ?", ids).Find(&users).Error; err != nil {
		return usernames
	}
	for _, u := range users {
		usernames[u.UserID] = u.Username
	}
	return usernames
}

// GetLeaderboard returns the current snapshot, best ranks first.
func (s *LeaderboardService) GetLeaderboard(questID string, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []models.LeaderboardEntry
	err := s.DB.Where("quest_id = ?", questID).
		Order("rank ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// --- HTTP handlers ---

func (s *LeaderboardService) GetLeaderboardEndpoint(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	entries, err := s.GetLeaderboard(c.Params("id"), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch leaderboard"})
	}
	return c.JSON(entries)
}

func (s *LeaderboardService) UpdateLeaderboardEndpoint(c *fiber.Ctx) error {
	result, err := s.UpdateLeaderboard(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(result)
}
