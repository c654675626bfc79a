package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bookswap/models"
)

// State - состояние цикла синхронизации клиента
type State int

const (
	// StateIdle - показан список входящих, диалог не открыт
	StateIdle State = iota
	// StateThreadLoading - запрос сообщений диалога в полете
	StateThreadLoading
	// StateThreadOpen - сообщения отрисованы, форма ввода активна
	StateThreadOpen
)

// DeletedPlaceholder рисуется вместо контента удаленного сообщения
const DeletedPlaceholder = "This message was deleted"

// Messenger - клиентский цикл синхронизации: держит список входящих
// и открытый диалог в согласии с сервером, перечитывая диалог после
// каждой мутации. Один запрос в полете на действие пользователя,
// автоматических ретраев нет.
type Messenger struct {
	baseURL string
	token   string
	userID  int64
	httpc   *http.Client
	out     io.Writer

	state    State
	threadID int64
	inbox    []models.ThreadSummary

	// подменяется в тестах
	now func() time.Time
}

func NewMessenger(baseURL, token string, userID int64, out io.Writer) *Messenger {
	return &Messenger{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		out:     out,
		state:   StateIdle,
		now:     time.Now,
	}
}

func (m *Messenger) State() State {
	return m.state
}

// CurrentThread возвращает id открытого диалога, 0 если диалог закрыт
func (m *Messenger) CurrentThread() int64 {
	if m.state != StateThreadOpen {
		return 0
	}
	return m.threadID
}

func (m *Messenger) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}
	return req, nil
}

// doJSON выполняет запрос и декодирует JSON-ответ. Не-2xx статус или
// не-JSON content-type - жесткий отказ для этой загрузки.
func (m *Messenger) doJSON(req *http.Request, out interface{}) error {
	resp, err := m.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// LoadInbox загружает и отрисовывает список входящих
func (m *Messenger) LoadInbox(ctx context.Context) error {
	req, err := m.newRequest(ctx, http.MethodGet, "/api/v1/threads", nil)
	if err != nil {
		return err
	}
	var inbox models.InboxResponse
	if err := m.doJSON(req, &inbox); err != nil {
		fmt.Fprintln(m.out, "! failed to load inbox")
		return err
	}

	m.inbox = inbox.Threads
	m.renderInbox()
	return nil
}

// OpenThread открывает диалог: Idle/ThreadOpen -> ThreadLoading ->
// ThreadOpen. При провале загрузки рисует ошибку вместо сообщений
// и возвращается в Idle.
func (m *Messenger) OpenThread(ctx context.Context, threadID int64) error {
	m.state = StateThreadLoading
	m.threadID = threadID

	req, err := m.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/v1/thread/%d/messages", threadID), nil)
	if err != nil {
		m.failLoad()
		return err
	}
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	if err := m.doJSON(req, &payload); err != nil {
		m.failLoad()
		return err
	}

	m.renderThread(threadID, payload.Messages)
	m.state = StateThreadOpen
	return nil
}

// failLoad - ошибка загрузки диалога изолируется в области сообщений,
// остальная страница живет дальше
func (m *Messenger) failLoad() {
	fmt.Fprintln(m.out, "! failed to load messages")
	m.state = StateIdle
	m.threadID = 0
}

// OpenFragment открывает диалог по якорю вида #thread-12 при старте
// страницы, если такой диалог есть в отрисованных входящих
func (m *Messenger) OpenFragment(ctx context.Context, fragment string) error {
	threadID, ok := ParseFragment(fragment)
	if !ok {
		return nil
	}
	for _, summary := range m.inbox {
		if summary.ThreadID == threadID {
			return m.OpenThread(ctx, threadID)
		}
	}
	fmt.Fprintf(m.out, "! no conversation found for %s\n", fragment)
	return nil
}

// ParseFragment разбирает якорь глубокой ссылки #thread-{id}
func ParseFragment(fragment string) (int64, bool) {
	if !strings.HasPrefix(fragment, "#thread-") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fragment, "#thread-"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Send отправляет сообщение в открытый диалог и перечитывает его.
// Пустой после обрезки черновик не отправляется. При провале отправки
// состояние не меняется - черновик остается у пользователя.
func (m *Messenger) Send(ctx context.Context, content string) error {
	if m.state != StateThreadOpen {
		return fmt.Errorf("no open thread")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	form := url.Values{"content": {content}}
	req, err := m.newRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/thread/%d/messages", m.threadID),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := m.doJSON(req, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("send rejected: %s", result.Error)
	}

	// Пересинхронизация с источником истины вместо локальной вставки
	return m.OpenThread(ctx, m.threadID)
}

// Delete удаляет сообщение после подтверждения и перечитывает диалог.
// Отказ от подтверждения или провал запроса оставляют все как есть.
func (m *Messenger) Delete(ctx context.Context, messageID int64, confirm func() bool) error {
	if m.state != StateThreadOpen {
		return fmt.Errorf("no open thread")
	}
	if confirm != nil && !confirm() {
		return nil
	}

	req, err := m.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/message/%d", messageID), nil)
	if err != nil {
		return err
	}
	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := m.doJSON(req, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("delete rejected: %s", result.Error)
	}

	return m.OpenThread(ctx, m.threadID)
}

// StartConversation просит сервер найти или создать диалог с
// пользователем и открывает его по возвращенному локатору
func (m *Messenger) StartConversation(ctx context.Context, targetUserID int64) error {
	req, err := m.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/v1/thread/start?to=%d", targetUserID), nil)
	if err != nil {
		return err
	}
	var result struct {
		Success  bool   `json:"success"`
		ThreadID int64  `json:"thread_id"`
		Location string `json:"location"`
	}
	if err := m.doJSON(req, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("start conversation rejected")
	}

	if err := m.LoadInbox(ctx); err != nil {
		return err
	}
	if idx := strings.Index(result.Location, "#"); idx >= 0 {
		return m.OpenFragment(ctx, result.Location[idx:])
	}
	return m.OpenThread(ctx, result.ThreadID)
}

// FormatTime - HH:MM для сегодняшних сообщений, DD/MM HH:MM для
// остальных, в точности как рисовал исходный клиент
func (m *Messenger) FormatTime(t time.Time) string {
	now := m.now()
	t = t.Local()
	if t.Year() == now.Year() && t.Month() == now.Month() && t.Day() == now.Day() {
		return t.Format("15:04")
	}
	return t.Format("02/01 15:04")
}

func (m *Messenger) renderInbox() {
	fmt.Fprintln(m.out, "-- inbox --")
	for _, summary := range m.inbox {
		last := "(no messages)"
		when := ""
		if summary.LastMessage != nil {
			last = *summary.LastMessage
		}
		if summary.LastMessageDate != nil {
			when = " " + m.FormatTime(*summary.LastMessageDate)
		}
		fmt.Fprintf(m.out, "[thread-%d] %s: %s%s\n", summary.ThreadID, summary.ParticipantName, last, when)
	}
}

// renderThread перерисовывает только область сообщений и помечает
// каждое как sent/received по автору. Удаленные сообщения получают
// плейсхолдер и лишаются ссылки удаления; ссылку удаления несут
// только собственные неудаленные сообщения.
func (m *Messenger) renderThread(threadID int64, messages []models.Message) {
	fmt.Fprintf(m.out, "-- thread %d --\n", threadID)
	for _, msg := range messages {
		tag := "received"
		if msg.AuthorID == m.userID {
			tag = "sent"
		}
		content := msg.Content
		deletable := msg.AuthorID == m.userID && !msg.IsDeleted
		if msg.IsDeleted {
			content = DeletedPlaceholder
		}
		line := fmt.Sprintf("%s [%s] %s", m.FormatTime(msg.SentAt), tag, content)
		if deletable {
			line += fmt.Sprintf("  (del #%d)", msg.ID)
		}
		fmt.Fprintln(m.out, line)
	}
}
