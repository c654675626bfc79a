package models

import (
	"fmt"
	"time"
)

// Thread - диалог ровно между двумя пользователями.
// PairKey хранит нормализованную пару "min:max" и закрывает гонку
// конкурентного создания диалога уникальным индексом на уровне БД.
type Thread struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PairKey   string    `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Thread) TableName() string {
	return "threads"
}

// PairKeyFor возвращает ключ пары независимо от порядка аргументов
func PairKeyFor(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// ThreadParticipant - связь пользователя с диалогом,
// ровно две записи на диалог, создаются в одной транзакции с ним
type ThreadParticipant struct {
	ID       int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID int64 `gorm:"index:thread_user_idx,unique" json:"thread_id"`
	UserID   int64 `gorm:"index:thread_user_idx,unique;index" json:"user_id"`
}

func (ThreadParticipant) TableName() string {
	return "thread_participant"
}

// ThreadSummary - строка входящих: собеседник плюс последнее
// неудаленное сообщение диалога (если оно есть)
type ThreadSummary struct {
	ThreadID          int64      `json:"thread_id"`
	ParticipantID     int64      `json:"participant_id"`
	ParticipantName   string     `json:"participant_name"`
	ParticipantAvatar string     `json:"participant_avatar"`
	LastMessage       *string    `json:"last_message,omitempty"`
	LastMessageDate   *time.Time `json:"last_message_date,omitempty"`
}

// InboxResponse - ответ API для списка диалогов
type InboxResponse struct {
	Threads []ThreadSummary `json:"threads"`
	Page    int             `json:"page"`
	HasMore bool            `json:"has_more"`
}
