package models

import (
	"time"
)

// Message представляет сообщение в диалоге между пользователями.
// Колонка auteur унаследована от исходной схемы БД.
// Сообщения не редактируются; удаление только мягкое, is_deleted
// никогда не сбрасывается обратно в false.
type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID  int64     `gorm:"column:thread_id;index" json:"thread_id"`
	AuthorID  int64     `gorm:"column:auteur;index" json:"auteur"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	SentAt    time.Time `gorm:"column:sent_at;autoCreateTime;index" json:"sent_at"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
}

// TableName возвращает имя таблицы для модели Message
func (Message) TableName() string {
	return "messages"
}
