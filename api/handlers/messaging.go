package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookswap/api/middleware"
	"bookswap/config"
	"bookswap/models"
	"bookswap/services"

	"github.com/gin-gonic/gin"
)

const serviceName = "messaging"

func inboxPageSize() int {
	if config.AppConfig != nil && config.AppConfig.Messaging.InboxPageSize > 0 {
		return config.AppConfig.Messaging.InboxPageSize
	}
	return 20
}

func messagesPath() string {
	if config.AppConfig != nil && config.AppConfig.Messaging.MessagesPath != "" {
		return config.AppConfig.Messaging.MessagesPath
	}
	return "/messages"
}

// ListInboxHandler - страница входящих текущего пользователя
func ListInboxHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize := inboxPageSize()
	offset := (page - 1) * pageSize

	// Запрашиваем на одну строку больше, чтобы узнать, есть ли
	// следующая страница; кеш хранит этот же необрезанный срез
	summaries := services.GetCachedInbox(c.Request.Context(), userID.(int64), page)
	if summaries == nil {
		threadService := services.NewThreadService()
		summaries, err = threadService.ListInboxForUser(c.Request.Context(), userID.(int64), pageSize+1, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list inbox"})
			return
		}
		services.CacheInbox(c.Request.Context(), userID.(int64), page, summaries)
	}

	hasMore := len(summaries) > pageSize
	if hasMore {
		summaries = summaries[:pageSize]
	}
	if summaries == nil {
		summaries = []models.ThreadSummary{}
	}

	c.JSON(http.StatusOK, models.InboxResponse{
		Threads: summaries,
		Page:    page,
		HasMore: hasMore,
	})
}

// GetThreadMessagesHandler - все сообщения диалога по возрастанию
// времени. Читать диалог может только его участник.
func GetThreadMessagesHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	threadID, err := strconv.ParseInt(c.Param("thread_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid thread_id"})
		return
	}

	threadService := services.NewThreadService()
	isParticipant, err := threadService.IsParticipant(c.Request.Context(), threadID, userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	messageService := services.NewMessageService()
	messages, err := messageService.ListByThread(c.Request.Context(), threadID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessageHandler - отправка сообщения в диалог. Контент приходит
// form-encoded полем content, обрезается и не может быть пустым.
func SendMessageHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	threadID, err := strconv.ParseInt(c.Param("thread_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid thread_id"})
		return
	}

	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty message"})
		return
	}

	start := time.Now()
	threadService := services.NewThreadService()
	otherID, err := threadService.OtherParticipant(c.Request.Context(), threadID, userID.(int64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if otherID == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	messageService := services.NewMessageService()
	msg, err := messageService.CreateMessage(c.Request.Context(), threadID, userID.(int64), content)
	middleware.RecordMessagingOperation("send", statusLabel(err), serviceName, time.Since(start), err)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty message"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	services.InvalidateInbox(c.Request.Context(), userID.(int64), otherID)
	// Брокер не на критическом пути отправки
	_ = services.PublishMessagingEvent(c.Request.Context(), services.MessagingEvent{
		Type:      services.EventMessageSent,
		ThreadID:  threadID,
		MessageID: msg.ID,
		ActorID:   userID.(int64),
		TargetID:  otherID,
		CreatedAt: msg.SentAt,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMessageHandler - мягкое удаление своего сообщения.
// Чужое или несуществующее сообщение - единый ответ 403,
// владельца сообщения не раскрываем.
func DeleteMessageHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message_id"})
		return
	}

	start := time.Now()
	messageService := services.NewMessageService()
	deleted, err := messageService.SoftDelete(c.Request.Context(), messageID, userID.(int64))
	middleware.RecordMessagingOperation("delete", statusLabel(err), serviceName, time.Since(start), err)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete message"})
		return
	}
	if !deleted {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Not allowed"})
		return
	}

	msg, err := messageService.FindByID(c.Request.Context(), messageID)
	if err == nil && msg != nil {
		threadService := services.NewThreadService()
		otherID, oErr := threadService.OtherParticipant(c.Request.Context(), msg.ThreadID, userID.(int64))
		if oErr == nil && otherID != 0 {
			services.InvalidateInbox(c.Request.Context(), userID.(int64), otherID)
			_ = services.PublishMessagingEvent(c.Request.Context(), services.MessagingEvent{
				Type:      services.EventMessageDeleted,
				ThreadID:  msg.ThreadID,
				MessageID: msg.ID,
				ActorID:   userID.(int64),
				TargetID:  otherID,
				CreatedAt: time.Now().UTC(),
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// StartConversationHandler - найти или создать диалог с пользователем
// из query-параметра to. GET отвечает редиректом на страницу
// мессенджера с якорем #thread-{id}, POST - JSON с тем же локатором.
func StartConversationHandler(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	targetID, err := strconv.ParseInt(c.Query("to"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user"})
		return
	}

	start := time.Now()
	conversationService := services.NewConversationService()
	threadID, err := conversationService.StartOrGet(c.Request.Context(), userID.(int64), targetID)
	middleware.RecordMessagingOperation("start_conversation", statusLabel(err), serviceName, time.Since(start), err)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTarget) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user"})
			return
		}
		// Ошибка хранилища: редирект на несуществующий диалог
		// не выдаем
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start conversation"})
		return
	}

	services.InvalidateInbox(c.Request.Context(), userID.(int64), targetID)
	_ = services.PublishMessagingEvent(c.Request.Context(), services.MessagingEvent{
		Type:      services.EventThreadCreated,
		ThreadID:  threadID,
		ActorID:   userID.(int64),
		TargetID:  targetID,
		CreatedAt: time.Now().UTC(),
	})

	location := fmt.Sprintf("%s#thread-%d", messagesPath(), threadID)
	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, location)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"thread_id": threadID,
		"location":  location,
	})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
