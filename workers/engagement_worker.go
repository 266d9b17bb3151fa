package workers

import (
	"context"
	"errors"
	"log"
	"time"

	"quest-economy-system/models"
	"quest-economy-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EngagementWorker sends character messages to users who have gone
// quiet, to draw them back into their quests. It holds its own AI
// client reference; a failed generation for one user never blocks the
// rest of the sweep.
type EngagementWorker struct {
	DB *gorm.DB
	AI services.AIClient

	// InactiveAfter is how long a user must be silent before the
	// worker reaches out; a user is contacted at most once per this
	// window as well.
	InactiveAfter time.Duration
}

func NewEngagementWorker(db *gorm.DB, ai services.AIClient) *EngagementWorker {
	return &EngagementWorker{
		DB:            db,
		AI:            ai,
		InactiveAfter: 24 * time.Hour,
	}
}

// Run polls on the given interval until ctx is cancelled.
func (w *EngagementWorker) Run(ctx context.Context, interval time.Duration) {
	log.Println("Starting engagement worker...")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Engagement worker stopped.")
			return
		case <-ticker.C:
			sent, err := w.Sweep(ctx, time.Now())
			if err != nil {
				log.Printf("[Engagement] Sweep failed: %v", err)
				continue
			}
			if sent > 0 {
				log.Printf("✅ Engagement sweep sent %d message(s)", sent)
			}
		}
	}
}

// Sweep finds inactive users and sends each one a character message
// for their first active quest, or a general teaser when they have
// none. Returns the number of messages sent.
func (w *EngagementWorker) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-w.InactiveAfter)

	var users []models.QuestUser
	err := w.DB.
		Where("engagement_enabled = ?", true).
		Where("last_activity IS NOT NULL AND last_activity < ?", cutoff).
		Where("last_engagement_at IS NULL OR last_engagement_at < ?", cutoff).
		Find(&users).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		if err := w.engageUser(ctx, &user, now); err != nil {
			log.Printf("[Engagement] Failed for user %s: %v", user.UserID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (w *EngagementWorker) engageUser(ctx context.Context, user *models.QuestUser, now time.Time) error {
	quest, err := w.firstActiveQuest(user.UserID, now)
	if err != nil {
		return err
	}

	var content string
	var questID string
	if quest != nil {
		questID = quest.ID
		content, err = w.AI.Respond(ctx, quest,
			"The participant has been silent for a while. Reach out in character, hint that the quest continues without them, and keep it to two or three sentences.",
			nil)
		if err != nil {
			return err
		}
	} else {
		teaser := models.Quest{
			Title:   "the realm",
			Context: "No active quest. Invite the user back with a short, intriguing message hinting at new challenges.",
			Character: models.CharacterProfile{
				Name:        "The Keeper",
				Personality: "mysterious and wise",
			},
		}
		content, err = w.AI.Respond(ctx, &teaser,
			"Generate a two-sentence message drawing an absent user back to the platform.",
			nil)
		if err != nil {
			return err
		}
	}

	return w.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.DailyEngagementMessage{
			ID:      uuid.NewString(),
			UserID:  user.UserID,
			QuestID: questID,
			Content: content,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.QuestUser{}).
			Where("user_id = ?", user.UserID).
			Update("last_engagement_at", now).Error
	})
}

// firstActiveQuest returns one unexpired active quest the user
// participates in, or nil.
func (w *EngagementWorker) firstActiveQuest(userID string, now time.Time) (*models.Quest, error) {
	var participant models.QuestParticipant
	err := w.DB.
		Joins("JOIN quests ON quests.id = quest_participants.quest_id").
		Where("quest_participants.user_id = ?", userID).
		Where("quests.status = ?", models.QuestStatusActive).
		Where("quests.end_date IS NULL OR quests.end_date > ?", now).
		Order("quest_participants.joined_at ASC").
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var quest models.Quest
	if err := w.DB.First(&quest, "id = ?", participant.QuestID).Error; err != nil {
		return nil, err
	}
	return &quest, nil
}
