package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bookswap/db"
	"bookswap/models"

	"gorm.io/gorm"
)

type MessageService struct{}

func NewMessageService() *MessageService {
	return &MessageService{}
}

// ListByThread возвращает сообщения диалога по возрастанию sent_at,
// при равном времени - по id (порядок вставки, стабильный)
func (ms *MessageService) ListByThread(ctx context.Context, threadID int64) ([]models.Message, error) {
	var messages []models.Message
	err := db.GetReadOnlyDB(ctx).
		Where("thread_id = ?", threadID).
		Order("sent_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// CreateMessage сохраняет сообщение, sent_at назначается сервером.
// Валидация пустого контента выполняется до вызова, на границе API,
// но дублируем проверку чтобы стор не принял пустую строку
func (ms *MessageService) CreateMessage(ctx context.Context, threadID, authorID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg := &models.Message{
		ThreadID:  threadID,
		AuthorID:  authorID,
		Content:   content,
		SentAt:    time.Now().UTC(),
		IsDeleted: false,
	}
	if err := db.GetWriteDB(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return msg, nil
}

// FindByID ищет сообщение, nil если не найдено
func (ms *MessageService) FindByID(ctx context.Context, messageID int64) (*models.Message, error) {
	var msg models.Message
	err := db.GetReadOnlyDB(ctx).Where("id = ?", messageID).First(&msg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// SoftDelete помечает сообщение удаленным, если его автор - requestingUserID.
// Контент не трогаем, строка остается на своем месте в хронологии.
// Повторное удаление своего сообщения - no-op с успехом.
func (ms *MessageService) SoftDelete(ctx context.Context, messageID, requestingUserID int64) (bool, error) {
	msg, err := ms.FindByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg == nil || msg.AuthorID != requestingUserID {
		return false, nil
	}
	if msg.IsDeleted {
		return true, nil
	}

	// Условие auteur = ? в UPDATE - проверка владельца на границе
	// транзакции, а не только в коде приложения
	err = db.GetWriteDB(ctx).Model(&models.Message{}).
		Where("id = ? AND auteur = ?", messageID, requestingUserID).
		Update("is_deleted", true).Error
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	return true, nil
}
