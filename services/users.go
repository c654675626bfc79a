package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"bookswap/db"
	"bookswap/models"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

// UserService - коллаборатор аутентификации: регистрация, логин,
// токены. Мессенджер сам его не вызывает, ему достаточно user_id,
// который middleware кладет в контекст запроса.
type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

func hashPassword(password string, salt []byte) string {
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash)
}

func (us *UserService) Register(ctx context.Context, name, password, avatar string) (int64, error) {
	if name == "" || password == "" {
		return 0, errors.New("name or password is empty")
	}

	// Проверяем, существует ли пользователь с таким именем
	var alreadyExists int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).
		Where("name = ?", name).
		Count(&alreadyExists).Error
	if err != nil {
		return 0, fmt.Errorf("error checking if user exists: %w", err)
	}
	if alreadyExists > 0 {
		return 0, errors.New("user already exists")
	}

	salt := make([]byte, 16)
	if _, err = rand.Read(salt); err != nil {
		return 0, err
	}

	user := &models.User{
		Name:     name,
		Avatar:   avatar,
		Password: hashPassword(password, salt),
	}
	if err := db.GetWriteDB(ctx).Create(user).Error; err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

func (us *UserService) Login(ctx context.Context, name, password string) (string, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("name = ?", name).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", errors.New("invalid credentials")
		}
		return "", err
	}

	parts := strings.Split(user.Password, "$")
	if len(parts) != 2 {
		return "", errors.New("invalid password format")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", err
	}
	if hashPassword(password, salt) != user.Password {
		return "", errors.New("invalid credentials")
	}

	// Старые токены удаляем, пользователю живется с одним
	_ = us.Logout(ctx, user.ID)

	tokenBytes := make([]byte, 32)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	err = db.GetWriteDB(ctx).Create(&models.UserTokens{
		UserID: user.ID,
		Token:  token,
	}).Error
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

func (us *UserService) Logout(ctx context.Context, userID int64) error {
	return db.GetWriteDB(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserTokens{}).Error
}

// ResolveToken возвращает user_id по токену, 0 если токен неизвестен
func (us *UserService) ResolveToken(ctx context.Context, token string) (int64, error) {
	var userToken models.UserTokens
	err := db.GetReadOnlyDB(ctx).Where("token = ?", token).First(&userToken).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return userToken.UserID, nil
}
