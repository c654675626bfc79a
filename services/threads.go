package services

import (
	"context"
	"fmt"

	"bookswap/db"
	"bookswap/models"

	"gorm.io/gorm"
)

type ThreadService struct{}

func NewThreadService() *ThreadService {
	return &ThreadService{}
}

// inboxQuery возвращает строки входящих: собеседника и последнее
// неудаленное сообщение каждого диалога. Последнее сообщение берем
// через подзапрос MAX(id) - sent_at назначается сервером монотонно,
// так что наибольший id и есть самое свежее сообщение.
const inboxQuery = `
SELECT
    t.id AS thread_id,
    u.id AS participant_id,
    u.name AS participant_name,
    COALESCE(NULLIF(u.avatar, ''), ?) AS participant_avatar,
    m.content AS last_message,
    m.sent_at AS last_message_date
FROM threads t
JOIN thread_participant tp1 ON t.id = tp1.thread_id AND tp1.user_id = ?
JOIN thread_participant tp2 ON t.id = tp2.thread_id AND tp2.user_id != ?
JOIN users u ON u.id = tp2.user_id
LEFT JOIN (
    SELECT thread_id, MAX(id) AS last_id
    FROM messages
    WHERE is_deleted = false
    GROUP BY thread_id
) latest ON latest.thread_id = t.id
LEFT JOIN messages m ON m.id = latest.last_id
ORDER BY (m.sent_at IS NULL), m.sent_at DESC, t.id DESC
LIMIT ? OFFSET ?`

// FindPairThread ищет диалог пары пользователей независимо от порядка
func (ts *ThreadService) FindPairThread(ctx context.Context, userA, userB int64) (*models.Thread, error) {
	var thread models.Thread
	err := db.GetReadOnlyDB(ctx).
		Where("pair_key = ?", models.PairKeyFor(userA, userB)).
		First(&thread).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pair thread: %w", err)
	}
	return &thread, nil
}

// CreateThread создает диалог и обе записи участников в одной
// транзакции: либо все три строки, либо ничего. Уникальный индекс
// по pair_key - финальная защита от дубликата пары при гонке.
func (ts *ThreadService) CreateThread(ctx context.Context, userA, userB int64) (int64, error) {
	thread := &models.Thread{PairKey: models.PairKeyFor(userA, userB)}

	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(thread).Error; err != nil {
			return err
		}
		participants := []models.ThreadParticipant{
			{ThreadID: thread.ID, UserID: userA},
			{ThreadID: thread.ID, UserID: userB},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create thread: %w", err)
	}

	return thread.ID, nil
}

// IsParticipant проверяет, что пользователь состоит в диалоге
func (ts *ThreadService) IsParticipant(ctx context.Context, threadID, userID int64) (bool, error) {
	var count int64
	err := db.GetReadOnlyDB(ctx).Model(&models.ThreadParticipant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

// OtherParticipant возвращает id собеседника в диалоге,
// 0 если диалога нет или пользователь в нем не состоит
func (ts *ThreadService) OtherParticipant(ctx context.Context, threadID, userID int64) (int64, error) {
	ok, err := ts.IsParticipant(ctx, threadID, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var participant models.ThreadParticipant
	err = db.GetReadOnlyDB(ctx).
		Where("thread_id = ? AND user_id != ?", threadID, userID).
		First(&participant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to find other participant: %w", err)
	}
	return participant.UserID, nil
}

// ThreadExists проверяет существование диалога
func (ts *ThreadService) ThreadExists(ctx context.Context, threadID int64) (bool, error) {
	var count int64
	err := db.GetReadOnlyDB(ctx).Model(&models.Thread{}).
		Where("id = ?", threadID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check thread: %w", err)
	}
	return count > 0, nil
}

// ListInboxForUser возвращает страницу входящих, отсортированную по
// дате последнего сообщения (диалоги без сообщений - в конце)
func (ts *ThreadService) ListInboxForUser(ctx context.Context, userID int64, limit, offset int) ([]models.ThreadSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var summaries []models.ThreadSummary
	err := db.GetReadOnlyDB(ctx).
		Raw(inboxQuery, models.DefaultAvatar, userID, userID, limit, offset).
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	return summaries, nil
}
