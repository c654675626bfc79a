package services

import (
	"context"
	"fmt"

	"bookswap/db"
	"bookswap/models"
)

// ConversationService - оркестрация "найти или создать диалог"
// при попытке пользователя написать другому пользователю
type ConversationService struct {
	threads *ThreadService
}

func NewConversationService() *ConversationService {
	return &ConversationService{
		threads: NewThreadService(),
	}
}

// StartOrGet возвращает id диалога пары, создавая его при необходимости.
// Идемпотентна: повторные вызовы (в том числе конкурентные из двух
// вкладок) возвращают один и тот же диалог. Предварительный поиск -
// только быстрый путь, настоящая защита от дубликата - уникальный
// индекс pair_key в ThreadService.CreateThread.
func (cs *ConversationService) StartOrGet(ctx context.Context, currentUserID, targetUserID int64) (int64, error) {
	if targetUserID == currentUserID {
		return 0, ErrInvalidTarget
	}

	var targetCount int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).
		Where("id = ?", targetUserID).
		Count(&targetCount).Error
	if err != nil {
		return 0, fmt.Errorf("error checking target user: %w", err)
	}
	if targetCount == 0 {
		return 0, ErrInvalidTarget
	}

	existing, err := cs.threads.FindPairThread(ctx, currentUserID, targetUserID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	threadID, createErr := cs.threads.CreateThread(ctx, currentUserID, targetUserID)
	if createErr == nil {
		return threadID, nil
	}

	// Проигрыш гонки check-then-create: конкурентный запрос успел
	// вставить пару первым, уникальный индекс отбил нашу запись.
	// Перечитываем и возвращаем победителя.
	existing, err = cs.threads.FindPairThread(ctx, currentUserID, targetUserID)
	if err == nil && existing != nil {
		return existing.ID, nil
	}

	return 0, createErr
}
