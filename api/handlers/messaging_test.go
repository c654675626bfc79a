package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"bookswap/api/routes"
	"bookswap/db"
	"bookswap/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	db.ORM = database
}

// setupRouter собирает роуты мессенджера с тестовой аутентификацией:
// user_id берется из заголовка X-User-ID
func setupRouter(t *testing.T) *gin.Engine {
	setupTestDB(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.MessagingApi(r, func(c *gin.Context) {
		header := c.GetHeader("X-User-ID")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	})
	return r
}

func createUser(t *testing.T, name string) int64 {
	t.Helper()
	user := &models.User{Name: name, Password: "x"}
	if err := db.ORM.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user.ID
}

func doRequest(r *gin.Engine, method, target string, form url.Values, userID string) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, _ := http.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartConversationAndDeepLink(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice") // id 1
	createUser(t, "bob")   // id 2

	w := doRequest(r, "POST", "/api/v1/thread/start?to=2", nil, "1")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success  bool   `json:"success"`
		ThreadID int64  `json:"thread_id"`
		Location string `json:"location"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.ThreadID)
	assert.True(t, strings.HasSuffix(resp.Location, "#thread-1"), "location %q", resp.Location)

	// Повторный клик - тот же диалог, дубля нет
	w2 := doRequest(r, "POST", "/api/v1/thread/start?to=2", nil, "1")
	assert.Equal(t, http.StatusOK, w2.Code)
	var resp2 struct {
		ThreadID int64 `json:"thread_id"`
	}
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.ThreadID, resp2.ThreadID)

	var threads int64
	db.ORM.Model(&models.Thread{}).Count(&threads)
	assert.Equal(t, int64(1), threads)

	// GET-вариант отвечает редиректом с тем же якорем
	w3 := doRequest(r, "GET", "/api/v1/thread/start?to=2", nil, "1")
	assert.Equal(t, http.StatusFound, w3.Code)
	assert.True(t, strings.HasSuffix(w3.Header().Get("Location"), "#thread-1"))
}

func TestStartConversationInvalidTarget(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice")

	// Сам с собой
	w := doRequest(r, "POST", "/api/v1/thread/start?to=1", nil, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Несуществующий пользователь
	w = doRequest(r, "POST", "/api/v1/thread/start?to=999", nil, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var threads int64
	db.ORM.Model(&models.Thread{}).Count(&threads)
	assert.Zero(t, threads)
}

func TestSendAndListMessages(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice")
	createUser(t, "bob")

	doRequest(r, "POST", "/api/v1/thread/start?to=2", nil, "1")

	// Отправка
	w := doRequest(r, "POST", "/api/v1/thread/1/messages", url.Values{"content": {"  Bonjour  "}}, "1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	// Чтение диалога
	w2 := doRequest(r, "GET", "/api/v1/thread/1/messages", nil, "2")
	assert.Equal(t, http.StatusOK, w2.Code)
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	assert.NoError(t, json.Unmarshal(w2.Body.Bytes(), &payload))
	if assert.Len(t, payload.Messages, 1) {
		assert.Equal(t, int64(1), payload.Messages[0].AuthorID)
		assert.Equal(t, "Bonjour", payload.Messages[0].Content)
		assert.False(t, payload.Messages[0].IsDeleted)
	}

	// Входящие отправителя показывают диалог с последним сообщением
	w3 := doRequest(r, "GET", "/api/v1/threads", nil, "1")
	assert.Equal(t, http.StatusOK, w3.Code)
	var inbox models.InboxResponse
	assert.NoError(t, json.Unmarshal(w3.Body.Bytes(), &inbox))
	if assert.Len(t, inbox.Threads, 1) {
		assert.Equal(t, int64(1), inbox.Threads[0].ThreadID)
		if assert.NotNil(t, inbox.Threads[0].LastMessage) {
			assert.Equal(t, "Bonjour", *inbox.Threads[0].LastMessage)
		}
	}
}

func TestSendEmptyContentRejected(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice")
	createUser(t, "bob")
	doRequest(r, "POST", "/api/v1/thread/start?to=2", nil, "1")

	w := doRequest(r, "POST", "/api/v1/thread/1/messages", url.Values{"content": {"   "}}, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["error"])

	var count int64
	db.ORM.Model(&models.Message{}).Count(&count)
	assert.Zero(t, count)
}

func TestThreadAccessRequiresParticipant(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice")
	createUser(t, "bob")
	createUser(t, "eve")
	doRequest(r, "POST", "/api/v1/thread/start?to=2", nil, "1")

	// Чужой не читает и не пишет
	w := doRequest(r, "GET", "/api/v1/thread/1/messages", nil, "3")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, "POST", "/api/v1/thread/1/messages", url.Values{"content": {"hi"}}, "3")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Без аутентификации - отказ
	w = doRequest(r, "GET", "/api/v1/thread/1/messages", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteMessageOwnership(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice")
	createUser(t, "bob")
	doRequest(r, "POST", "/api/v1/thread/start?to=2", nil, "1")
	doRequest(r, "POST", "/api/v1/thread/1/messages", url.Values{"content": {"mine"}}, "1")

	// Не владелец - 403, состояние не меняется
	w := doRequest(r, "DELETE", "/api/v1/message/1", nil, "2")
	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp struct {
		Success bool `json:"success"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)

	var msg models.Message
	assert.NoError(t, db.ORM.First(&msg, 1).Error)
	assert.False(t, msg.IsDeleted)

	// Несуществующее сообщение - тот же 403, без раскрытия деталей
	w = doRequest(r, "DELETE", "/api/v1/message/999", nil, "2")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Владелец удаляет, повторное удаление тоже успех
	w = doRequest(r, "DELETE", "/api/v1/message/1", nil, "1")
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(r, "DELETE", "/api/v1/message/1", nil, "1")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, db.ORM.First(&msg, 1).Error)
	assert.True(t, msg.IsDeleted)
	assert.Equal(t, "mine", msg.Content)

	// Удаленное сообщение остается в выдаче диалога с флагом
	w = doRequest(r, "GET", "/api/v1/thread/1/messages", nil, "1")
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	if assert.Len(t, payload.Messages, 1) {
		assert.True(t, payload.Messages[0].IsDeleted)
	}
}

func TestInboxPagination(t *testing.T) {
	r := setupRouter(t)
	createUser(t, "alice")
	for i := 0; i < 3; i++ {
		createUser(t, string(rune('b'+i))+"-user")
	}

	for target := 2; target <= 4; target++ {
		w := doRequest(r, "POST", "/api/v1/thread/start?to="+strconv.Itoa(target), nil, "1")
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(r, "GET", "/api/v1/threads?page=1", nil, "1")
	assert.Equal(t, http.StatusOK, w.Code)
	var inbox models.InboxResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	assert.Len(t, inbox.Threads, 3)
	assert.Equal(t, 1, inbox.Page)
	assert.False(t, inbox.HasMore)

	// Некорректный номер страницы откатывается к первой
	w = doRequest(r, "GET", "/api/v1/threads?page=abc", nil, "1")
	assert.Equal(t, http.StatusOK, w.Code)
}
