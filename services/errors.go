package services

import "errors"

// Ошибки мессенджера, проверяются через errors.Is на границе API
var (
	// ErrInvalidTarget - собеседник не существует или равен инициатору
	ErrInvalidTarget = errors.New("invalid conversation target")
	// ErrEmptyContent - пустое сообщение после обрезки пробелов
	ErrEmptyContent = errors.New("empty message content")
	// ErrForbidden - операция над чужим сообщением или чужим диалогом
	ErrForbidden = errors.New("forbidden")
	// ErrThreadNotFound - диалог не найден
	ErrThreadNotFound = errors.New("thread not found")
	// ErrMessageNotFound - сообщение не найдено
	ErrMessageNotFound = errors.New("message not found")
)
