// services/quest_service.go
package services

import (
	"errors"
	"log"
	"path/filepath"
	"time"

	"quest-economy-system/models"
	"quest-economy-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// QuestService owns the quest lifecycle state machine:
// scheduled (derived) → active → stalled (paused) → active → ended.
// "ended" is terminal and the transition into it is a single atomic
// conditional update, which doubles as the idempotence key for reward
// distribution.
type QuestService struct {
	DB      *gorm.DB
	Rewards *RewardService
}

func NewQuestService(db *gorm.DB, rewards *RewardService) *QuestService {
	return &QuestService{DB: db, Rewards: rewards}
}

// GetQuest loads a quest by ID.
func (s *QuestService) GetQuest(questID string) (*models.Quest, error) {
	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return &quest, nil
}

// PauseQuest stalls an active quest. The pre-pause end date is copied
// into original_end_date exactly once, surviving any number of later
// pause/resume cycles.
func (s *QuestService) PauseQuest(questID string) (*models.Quest, error) {
	var quest *models.Quest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var q models.Quest
		if err := tx.First(&q, "id = ?", questID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}
		if q.Status == models.QuestStatusEnded {
			return ErrQuestEnded
		}
		if q.IsPaused {
			return ErrQuestPaused
		}

		if q.OriginalEndDate == nil && q.EndDate != nil {
			original := *q.EndDate
			q.OriginalEndDate = &original
		}
		now := time.Now()
		q.IsPaused = true
		q.PausedAt = &now
		q.Status = models.QuestStatusStalled
		if err := tx.Save(&q).Error; err != nil {
			return err
		}
		quest = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Quest] Paused %s at %s", quest.ID, quest.PausedAt.Format(time.RFC3339))
	return quest, nil
}

// ResumeQuest reactivates a paused quest, folding the elapsed pause
// into paused_duration and pushing end_date forward so the total
// active window is preserved.
func (s *QuestService) ResumeQuest(questID string) (*models.Quest, error) {
	var quest *models.Quest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var q models.Quest
		if err := tx.First(&q, "id = ?", questID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}
		if !q.IsPaused {
			return ErrQuestNotPaused
		}

		now := time.Now()
		if q.PausedAt != nil {
			q.PausedDuration += int64(now.Sub(*q.PausedAt).Seconds())
		}
		q.IsPaused = false
		q.PausedAt = nil
		q.Status = models.QuestStatusActive
		if q.OriginalEndDate != nil {
			extended := q.OriginalEndDate.Add(time.Duration(q.PausedDuration) * time.Second)
			q.EndDate = &extended
		}
		if err := tx.Save(&q).Error; err != nil {
			return err
		}
		quest = &q
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Quest] Resumed %s, total paused %ds", quest.ID, quest.PausedDuration)
	return quest, nil
}

// EndQuest transitions a quest to ended and runs the distribution
// pass, all in one transaction. The status flip is a conditional
// update; a concurrent trigger that loses the race observes zero rows
// affected and returns ErrQuestEnded without touching any wallet.
func (s *QuestService) EndQuest(questID string) (*models.Quest, []models.QuestReward, error) {
	var (
		quest   *models.Quest
		rewards []models.QuestReward
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Quest{}).
			Where("id = ? AND status <> ?", questID, models.QuestStatusEnded).
			Updates(map[string]interface{}{
				"status":    models.QuestStatusEnded,
				"is_paused": false,
				"paused_at": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the quest does not exist or it is already ended.
			var q models.Quest
			if err := tx.First(&q, "id = ?", questID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrQuestNotFound
				}
				return err
			}
			return ErrQuestEnded
		}

		var q models.Quest
		if err := tx.First(&q, "id = ?", questID).Error; err != nil {
			return err
		}

		ranked, err := rankedParticipants(tx, questID)
		if err != nil {
			return err
		}
		rewards, err = s.Rewards.DistributeFinalRewards(tx, &q, ranked)
		if err != nil {
			return err
		}
		quest = &q
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("✅ Quest %s ended, %d rewards distributed", quest.ID, len(rewards))
	return quest, rewards, nil
}

// CheckExpiredQuests ends every unpaused quest whose end date has
// passed. Invoked by the scheduler; safe against concurrent manual
// ends thanks to the conditional update inside EndQuest.
func (s *QuestService) CheckExpiredQuests(now time.Time) (int, error) {
	var expired []models.Quest
	err := s.DB.
		Where("status <> ? AND is_paused = ? AND end_date IS NOT NULL AND end_date < ?",
			models.QuestStatusEnded, false, now).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, q := range expired {
		if _, _, err := s.EndQuest(q.ID); err != nil {
			if errors.Is(err, ErrQuestEnded) {
				continue // lost the race to another trigger, fine
			}
			log.Printf("[Scheduler] Failed to end expired quest %s: %v", q.ID, err)
			continue
		}
		ended++
	}
	return ended, nil
}

// JoinQuest creates the participant row and seeds the user snapshot.
func (s *QuestService) JoinQuest(questID, userID, username string) (*models.QuestParticipant, error) {
	var participant *models.QuestParticipant
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var quest models.Quest
		if err := tx.First(&quest, "id = ?", questID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}
		if quest.Status == models.QuestStatusEnded {
			return ErrQuestEnded
		}

		var existing models.QuestParticipant
		err := tx.Where("quest_id = ? AND user_id = ?", questID, userID).First(&existing).Error
		if err == nil {
			return ErrAlreadyJoined
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		p := models.QuestParticipant{
			ID:       uuid.NewString(),
			QuestID:  questID,
			UserID:   userID,
			ReplyLog: models.ReplyLog{},
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		// Keep a local user snapshot for the engagement sweep.
		var user models.QuestUser
		err = tx.Where("user_id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			now := time.Now()
			user = models.QuestUser{
				ID:                uuid.NewString(),
				UserID:            userID,
				Username:          username,
				LastActivity:      &now,
				EngagementEnabled: true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		participant = &p
		return nil
	})
	return participant, err
}

// LeaveQuest removes a participant from a quest that has not ended.
func (s *QuestService) LeaveQuest(questID, userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var quest models.Quest
		if err := tx.First(&quest, "id = ?", questID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}
		if quest.Status == models.QuestStatusEnded {
			return ErrQuestEnded
		}
		res := tx.Where("quest_id = ? AND user_id = ?", questID, userID).
			Delete(&models.QuestParticipant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrParticipantNotFound
		}
		return nil
	})
}

// rankedParticipants loads a quest's participants in final standing
// order: score descending, ties broken by earliest last reply. NULLS
// LAST is spelled out because sqlite and postgres disagree on the
// default NULL position, and a never-replied participant must not
// outrank a tied one who replied.
func rankedParticipants(tx *gorm.DB, questID string) ([]models.QuestParticipant, error) {
	var participants []models.QuestParticipant
	err := tx.Where("quest_id = ?", questID).
		Order("score DESC, last_reply_at ASC NULLS LAST").
		Find(&participants).Error
	return participants, err
}

// --- HTTP handlers ---

// CreateQuest creates a quest from a multipart form (admin only).
// Distribution rules and character profile arrive as JSON fields and
// are validated before anything is written.
func (s *QuestService) CreateQuest(c *fiber.Ctx) error {
	title := c.FormValue("title")
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	var rules models.DistributionRules
	if rulesJSON := c.FormValue("distribution_rules"); rulesJSON != "" {
		if err := rules.Scan(rulesJSON); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid distribution_rules JSON"})
		}
	}
	if err := rules.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var character models.CharacterProfile
	if charJSON := c.FormValue("character"); charJSON != "" {
		if err := character.Scan(charJSON); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid character JSON"})
		}
		if err := character.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	var startDate, endDate *time.Time
	if v := c.FormValue("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start_date (use RFC3339)"})
		}
		startDate = &t
	}
	if v := c.FormValue("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end_date (use RFC3339)"})
		}
		endDate = &t
	}

	quest := models.Quest{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        slug.Make(title),
		Description: c.FormValue("description"),
		Context:     c.FormValue("context"),
		MediaURL:    c.FormValue("media_url"),
		Character:   character,
		Rules:       rules,
		Status:      models.QuestStatusActive,
		StartDate:   startDate,
		EndDate:     endDate,
	}

	// Optional character profile image → R2, or the local uploads
	// directory when R2 is not configured.
	if image, err := c.FormFile("profile_image"); err == nil && image.Size > 0 {
		ext := filepath.Ext(image.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		filename := uuid.NewString() + ext
		if utils.R2Configured() {
			url, err := utils.UploadFileToR2(image, "quests/profiles/"+filename)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload profile image"})
			}
			quest.ProfileImageURL = url
		} else {
			if err := utils.SaveFile(image, utils.GetUploadPath(filename)); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save profile image"})
			}
			quest.ProfileImageURL = "/uploads/" + filename
		}
	}

	if err := s.DB.Create(&quest).Error; err != nil {
		log.Printf("DB Error creating quest: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create quest"})
	}
	return c.Status(fiber.StatusCreated).JSON(quest)
}

func (s *QuestService) GetQuestByID(c *fiber.Ctx) error {
	quest, err := s.GetQuest(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	s.DB.Model(&models.QuestParticipant{}).Where("quest_id = ?", quest.ID).Count(&quest.ParticipantCount)
	return c.JSON(quest)
}

func (s *QuestService) GetAllQuests(c *fiber.Ctx) error {
	var quests []models.Quest
	query := s.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&quests).Error; err != nil {
		log.Printf("DB Error fetching quests: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch quests"})
	}
	return c.JSON(quests)
}

func (s *QuestService) PauseQuestEndpoint(c *fiber.Ctx) error {
	quest, err := s.PauseQuest(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message":   "Quest paused successfully",
		"quest_id":  quest.ID,
		"paused_at": quest.PausedAt,
		"status":    quest.Status,
	})
}

func (s *QuestService) ResumeQuestEndpoint(c *fiber.Ctx) error {
	quest, err := s.ResumeQuest(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message":               "Quest resumed successfully",
		"quest_id":              quest.ID,
		"status":                quest.Status,
		"total_paused_duration": quest.PausedDuration,
		"new_end_date":          quest.EndDate,
	})
}

func (s *QuestService) EndQuestEndpoint(c *fiber.Ctx) error {
	quest, rewards, err := s.EndQuest(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"message":             "Quest ended successfully",
		"quest_id":            quest.ID,
		"status":              quest.Status,
		"rewards_distributed": len(rewards),
	})
}

func (s *QuestService) GetQuestStatusEndpoint(c *fiber.Ctx) error {
	quest, err := s.GetQuest(c.Params("id"))
	if err != nil {
		return questErrorResponse(c, err)
	}
	now := time.Now()
	var maxScore struct{ Max int64 }
	s.DB.Model(&models.QuestParticipant{}).
		Where("quest_id = ?", quest.ID).
		Select("COALESCE(MAX(score), 0) AS max").
		Scan(&maxScore)
	var count int64
	s.DB.Model(&models.QuestParticipant{}).Where("quest_id = ?", quest.ID).Count(&count)

	return c.JSON(fiber.Map{
		"quest_id":          quest.ID,
		"status":            quest.Status,
		"scheduled":         quest.Scheduled(now),
		"is_paused":         quest.IsPaused,
		"paused_duration":   quest.PausedDuration,
		"start_date":        quest.StartDate,
		"end_date":          quest.EndDate,
		"original_end_date": quest.OriginalEndDate,
		"max_score":         maxScore.Max,
		"participant_count": count,
		"quest_ended":       quest.Status == models.QuestStatusEnded,
	})
}

func (s *QuestService) JoinQuestEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}
	var req struct {
		Username string `json:"username"`
	}
	_ = c.BodyParser(&req)

	participant, err := s.JoinQuest(c.Params("id"), userID, req.Username)
	if err != nil {
		if errors.Is(err, ErrAlreadyJoined) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return questErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(participant)
}

func (s *QuestService) LeaveQuestEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}
	if err := s.LeaveQuest(c.Params("id"), userID); err != nil {
		return questErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left quest successfully"})
}

func (s *QuestService) GetQuestParticipants(c *fiber.Ctx) error {
	var participants []models.QuestParticipant
	err := s.DB.Where("quest_id = ?", c.Params("id")).
		Order("score DESC, last_reply_at ASC NULLS LAST").
		Find(&participants).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch participants"})
	}
	return c.JSON(participants)
}

// questErrorResponse maps the service error taxonomy onto HTTP
// statuses the way the rest of the handlers do.
func questErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrQuestNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrWalletNotFound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrWheelNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrQuestEnded),
		errors.Is(err, ErrQuestPaused),
		errors.Is(err, ErrQuestNotPaused),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrBonusAlreadyClaimed),
		errors.Is(err, ErrBonusAlreadyProcessed),
		errors.Is(err, ErrNoActiveBonusConfig),
		errors.Is(err, ErrNotEnoughRankedUsers),
		errors.Is(err, ErrSpinLimitReached):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientCredits):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientBalance):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrExternalService):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("DB Error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
