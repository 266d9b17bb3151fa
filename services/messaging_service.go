// services/messaging_service.go
package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"quest-economy-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxMessageLength = 1000

// MessagingService runs the scored-message pipeline: credit gate,
// persist, external AI round-trip, then score/credit/leaderboard in a
// second short transaction. The AI call sits outside any transaction
// so a slow model can never hold a lock on quest rows.
type MessagingService struct {
	DB          *gorm.DB
	AI          AIClient
	Credits     *CreditsService
	Leaderboard *LeaderboardService
}

func NewMessagingService(db *gorm.DB, ai AIClient, credits *CreditsService, leaderboard *LeaderboardService) *MessagingService {
	return &MessagingService{DB: db, AI: ai, Credits: credits, Leaderboard: leaderboard}
}

// SendMessageResult is returned to the sender after a full round trip.
type SendMessageResult struct {
	MessageID         string               `json:"message_id"`
	CharacterResponse string               `json:"character_response"`
	Score             int64                `json:"score"`
	Breakdown         map[string]float64   `json:"score_breakdown,omitempty"`
	TotalScore        int64                `json:"total_score"`
	QuestEnded        bool                 `json:"quest_ended"`
	Credits           *models.CreditStatus `json:"credits,omitempty"`
}

// SendMessage processes one user message end to end.
//
// Ordering is deliberate: the user's message is persisted before the
// AI call and survives an AI failure; the credit is spent only after a
// score was obtained. A failed AI call therefore costs nothing but
// leaves the message visible.
func (s *MessagingService) SendMessage(ctx context.Context, questID, userID, content string) (*SendMessageResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("message content cannot be empty")
	}
	if len(content) > maxMessageLength {
		return nil, errors.New("message too long (max 1000 characters)")
	}

	// Gate: read-only credit check (applies the lazy reset).
	creditStatus, err := s.Credits.CanSendMessage(userID, questID)
	if err != nil {
		return nil, err
	}
	if !creditStatus.CanSend {
		return nil, ErrInsufficientCredits
	}

	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", questID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	if quest.Status == models.QuestStatusEnded {
		return nil, ErrQuestEnded
	}

	var participant models.QuestParticipant
	err = s.DB.Where("quest_id = ? AND user_id = ?", questID, userID).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}

	// Persist the user message first, in its own short transaction.
	userMessage := models.ChatMessage{
		ID:      uuid.NewString(),
		QuestID: questID,
		UserID:  userID,
		Content: content,
	}
	if err := s.DB.Create(&userMessage).Error; err != nil {
		return nil, err
	}

	history, err := s.recentHistory(questID, 5)
	if err != nil {
		return nil, err
	}

	// External round-trip, outside any transaction. On failure the
	// message stays persisted, no score or credit mutation happens.
	characterResponse, err := s.AI.Respond(ctx, &quest, content, history)
	if err != nil {
		return nil, err
	}
	scoreResult, err := s.AI.Score(ctx, &quest, content)
	if err != nil {
		return nil, err
	}

	// Second short transaction: score, participant, credit.
	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChatMessage{}).
			Where("id = ?", userMessage.ID).
			Update("score", scoreResult.Score).Error; err != nil {
			return err
		}

		if err := tx.Where("quest_id = ? AND user_id = ?", questID, userID).
			First(&participant).Error; err != nil {
			return err
		}
		participant.Score += scoreResult.Score
		participant.LastReplyAt = &now
		participant.ReplyLog = append(participant.ReplyLog, models.ReplyEntry{
			MessageID: userMessage.ID,
			Content:   content,
			Score:     scoreResult.Score,
			Breakdown: scoreResult.Breakdown,
			Timestamp: now,
		})
		if err := tx.Save(&participant).Error; err != nil {
			return err
		}

		return tx.Model(&models.QuestUser{}).
			Where("user_id = ?", userID).
			Update("last_activity", now).Error
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Credits.SpendCredit(userID, questID, "Message sent to character"); err != nil {
		// The score already landed; log rather than unwind it.
		log.Printf("⚠️  Failed to spend credit for user %s on quest %s: %v", userID, questID, err)
	}

	// Recompute standings; may end the quest.
	update, err := s.Leaderboard.UpdateLeaderboard(questID)
	if err != nil {
		return nil, err
	}

	// Persist the character's reply.
	aiMessage := models.ChatMessage{
		ID:      uuid.NewString(),
		QuestID: questID,
		Content: characterResponse,
	}
	if err := s.DB.Create(&aiMessage).Error; err != nil {
		return nil, err
	}

	credits, _ := s.Credits.CanSendMessage(userID, questID)
	return &SendMessageResult{
		MessageID:         userMessage.ID,
		CharacterResponse: characterResponse,
		Score:             scoreResult.Score,
		Breakdown:         scoreResult.Breakdown,
		TotalScore:        participant.Score,
		QuestEnded:        update.QuestEnded,
		Credits:           credits,
	}, nil
}

// recentHistory returns the last n quest messages, oldest first, in
// the shape the AI client expects.
func (s *MessagingService) recentHistory(questID string, n int) ([]ChatTurn, error) {
	var messages []models.ChatMessage
	err := s.DB.Where("quest_id = ?", questID).
		Order("created_at DESC").
		Limit(n).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	history := make([]ChatTurn, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		role := "assistant"
		if messages[i].UserID != "" {
			role = "user"
		}
		history = append(history, ChatTurn{Role: role, Content: messages[i].Content})
	}
	return history, nil
}

// --- HTTP handlers ---

func (s *MessagingService) SendMessageEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := s.SendMessage(c.Context(), c.Params("id"), userID, req.Message)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error": "No credits available. Purchase more or watch an ad to earn credits.",
			})
		}
		if errors.Is(err, ErrQuestNotFound) || errors.Is(err, ErrQuestEnded) ||
			errors.Is(err, ErrParticipantNotFound) || errors.Is(err, ErrExternalService) {
			return questErrorResponse(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

func (s *MessagingService) GetQuestMessagesEndpoint(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	var messages []models.ChatMessage
	err := s.DB.Where("quest_id = ?", c.Params("id")).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch messages"})
	}
	return c.JSON(messages)
}

func (s *MessagingService) GetUserMessagesEndpoint(c *fiber.Ctx) error {
	var messages []models.ChatMessage
	err := s.DB.Where("quest_id = ? AND user_id = ?", c.Params("id"), c.Params("user_id")).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch messages"})
	}
	return c.JSON(messages)
}
