package services

import (
	"context"
	"testing"

	"bookswap/db"
	"bookswap/models"

	"github.com/brianvoe/gofakeit/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB инициализирует тестовую базу данных SQLite в памяти
func setupTestDB(t *testing.T) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	// Устанавливаем глобальную переменную ORM
	db.ORM = database
}

// createTestUser создает пользователя со сгенерированным профилем
func createTestUser(t *testing.T, name string) int64 {
	t.Helper()
	user := &models.User{
		Name:     name,
		Avatar:   "",
		Password: gofakeit.Password(true, true, true, false, false, 16),
	}
	if err := db.ORM.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user %s: %v", name, err)
	}
	return user.ID
}

func testCtx() context.Context {
	return context.Background()
}
