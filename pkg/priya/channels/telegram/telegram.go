// Package telegram implements the Telegram transport using the Bot API
// directly over HTTP.
//
// Features:
//   - Long polling for updates (getUpdates) with exponential backoff
//   - Text, photo, voice, audio, video and document messages
//   - Multipart uploads and re-sends by file_id
//   - Chat actions (sendChatAction)
//   - Media download via getFile
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/priyabot/priya/pkg/priya/channels"
)

// maxMessageRunes is the Bot API limit for one text message.
const maxMessageRunes = 4096

// Config holds Telegram transport configuration.
type Config struct {
	// Token is the Bot API token (from @BotFather).
	Token string `yaml:"token"`

	// APIURL is the Bot API root. Empty means https://api.telegram.org.
	APIURL string `yaml:"api_url"`

	// PollTimeout is the long-polling timeout in seconds.
	PollTimeout int `yaml:"poll_timeout"`

	// AllowedChats restricts which chat IDs the bot responds to.
	// Empty means respond to all chats.
	AllowedChats []int64 `yaml:"allowed_chats"`
}

// Telegram implements channels.Channel.
type Telegram struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client

	// baseURL is <api>/bot<token>; fileURL is <api>/file/bot<token>.
	baseURL string
	fileURL string

	messages  chan *channels.IncomingMessage
	connected atomic.Bool

	// offset is the last processed update ID + 1.
	offset int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// New creates a Telegram transport.
func New(cfg Config, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	api := strings.TrimRight(cfg.APIURL, "/")
	return &Telegram{
		cfg:      cfg,
		logger:   logger.With("component", "telegram"),
		client:   &http.Client{Timeout: time.Duration(cfg.PollTimeout+30) * time.Second},
		baseURL:  api + "/bot" + cfg.Token,
		fileURL:  api + "/file/bot" + cfg.Token,
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// Name returns "telegram".
func (t *Telegram) Name() string { return "telegram" }

// Connect verifies the token and starts the polling loop.
func (t *Telegram) Connect(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected.Load() {
		return nil
	}
	if t.closed {
		return fmt.Errorf("telegram: transport already disconnected")
	}

	me, err := t.getMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: failed to verify token: %w", err)
	}
	t.logger.Info("telegram: connected", "bot", me.Username, "id", me.ID)

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.connected.Store(true)
	go t.pollLoop()
	return nil
}

// Disconnect stops polling and waits for the loop to exit. The Receive
// channel is closed afterwards and the transport cannot be reconnected.
func (t *Telegram) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected.Load() {
		return nil
	}
	t.cancel()
	<-t.done
	t.connected.Store(false)
	t.closed = true
	t.logger.Info("telegram: disconnected")
	return nil
}

// Receive returns the incoming messages channel.
func (t *Telegram) Receive() <-chan *channels.IncomingMessage {
	return t.messages
}

// SendText sends text, split into several messages when it exceeds the
// Bot API limit.
func (t *Telegram) SendText(ctx context.Context, chatID, text string) error {
	id, err := t.chatID(chatID)
	if err != nil {
		return err
	}
	for _, part := range splitText(text, maxMessageRunes) {
		if _, err := t.apiCall(ctx, "sendMessage", map[string]any{
			"chat_id": id,
			"text":    part,
		}); err != nil {
			return err
		}
	}
	return nil
}

// SendDocument uploads a document.
func (t *Telegram) SendDocument(ctx context.Context, chatID string, file channels.File) error {
	return t.upload(ctx, "sendDocument", "document", chatID, file)
}

// SendVoice uploads a voice note.
func (t *Telegram) SendVoice(ctx context.Context, chatID string, file channels.File) error {
	return t.upload(ctx, "sendVoice", "voice", chatID, file)
}

// SendPhoto uploads a photo.
func (t *Telegram) SendPhoto(ctx context.Context, chatID string, file channels.File) error {
	return t.upload(ctx, "sendPhoto", "photo", chatID, file)
}

// SendMediaRef re-sends media by file_id.
func (t *Telegram) SendMediaRef(ctx context.Context, chatID string, ref channels.MediaRef) error {
	id, err := t.chatID(chatID)
	if err != nil {
		return err
	}
	method, field := methodFor(ref.Type)
	payload := map[string]any{
		"chat_id": id,
		field:     ref.FileID,
	}
	if ref.Caption != "" {
		payload["caption"] = ref.Caption
	}
	_, err = t.apiCall(ctx, method, payload)
	return err
}

// SendActivity sends a chat action.
func (t *Telegram) SendActivity(ctx context.Context, chatID string, activity channels.Activity) error {
	id, err := t.chatID(chatID)
	if err != nil {
		return err
	}
	_, err = t.apiCall(ctx, "sendChatAction", map[string]any{
		"chat_id": id,
		"action":  string(activity),
	})
	return err
}

// Download fetches a file by file_id.
func (t *Telegram) Download(ctx context.Context, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, channels.ErrMediaDownloadFailed
	}
	info, err := t.getFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram: getFile failed: %w", err)
	}
	if info.FilePath == "" {
		return nil, channels.ErrMediaDownloadFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.fileURL+"/"+info.FilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: creating download request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", channels.ErrMediaDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram: reading media: %w", err)
	}
	return data, nil
}

// ---------- Internal Methods ----------

func (t *Telegram) chatID(s string) (int64, error) {
	if !t.connected.Load() {
		return 0, channels.ErrChannelDisconnected
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chat ID %q: %w", s, err)
	}
	return id, nil
}

func methodFor(mt channels.MessageType) (method, field string) {
	switch mt {
	case channels.MessageImage:
		return "sendPhoto", "photo"
	case channels.MessageVoice:
		return "sendVoice", "voice"
	case channels.MessageAudio:
		return "sendAudio", "audio"
	case channels.MessageVideo:
		return "sendVideo", "video"
	case channels.MessageSticker:
		return "sendSticker", "sticker"
	default:
		return "sendDocument", "document"
	}
}

// splitText cuts text into pieces of at most limit runes, preferring line
// breaks.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// pollLoop runs the getUpdates long-polling loop.
func (t *Telegram) pollLoop() {
	defer close(t.done)
	defer close(t.messages)

	t.logger.Info("telegram: polling started")
	backoff := time.Second

	for {
		select {
		case <-t.ctx.Done():
			t.logger.Info("telegram: polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates(t.ctx, t.offset, 100, t.cfg.PollTimeout)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.logger.Warn("telegram: getUpdates error", "error", err, "backoff", backoff)
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		for _, u := range updates {
			if u.UpdateID >= t.offset {
				t.offset = u.UpdateID + 1
			}
			t.processUpdate(u)
		}
	}
}

// processUpdate converts a Telegram update into an IncomingMessage.
func (t *Telegram) processUpdate(u tgUpdate) {
	msg := u.Message
	if msg == nil {
		return
	}

	if len(t.cfg.AllowedChats) > 0 {
		allowed := false
		for _, id := range t.cfg.AllowedChats {
			if id == msg.Chat.ID {
				allowed = true
				break
			}
		}
		if !allowed {
			return
		}
	}

	incoming := convertMessage(msg)
	if msg.ReplyToMessage != nil {
		incoming.ReplyTo = convertMessage(msg.ReplyToMessage)
	}

	select {
	case t.messages <- incoming:
	default:
		t.logger.Warn("telegram: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

func convertMessage(msg *tgMessage) *channels.IncomingMessage {
	from, fromName := "", ""
	if msg.From != nil {
		from = strconv.FormatInt(msg.From.ID, 10)
		fromName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		if fromName == "" {
			fromName = msg.From.Username
		}
	}

	incoming := &channels.IncomingMessage{
		ID:        strconv.Itoa(msg.MessageID),
		Channel:   "telegram",
		From:      from,
		FromName:  fromName,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Type:      channels.MessageText,
		Content:   msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
	if msg.Caption != "" && incoming.Content == "" {
		incoming.Content = msg.Caption
	}

	setMedia := func(mt channels.MessageType, f tgFileRef) {
		incoming.Type = mt
		incoming.Media = &channels.MediaInfo{
			Type:     mt,
			FileID:   f.FileID,
			MimeType: f.MimeType,
			FileSize: f.FileSize,
			Filename: f.FileName,
		}
	}

	switch {
	case len(msg.Photo) > 0:
		// The largest size is the last one.
		setMedia(channels.MessageImage, msg.Photo[len(msg.Photo)-1])
		if incoming.Media.MimeType == "" {
			incoming.Media.MimeType = "image/jpeg"
		}
	case msg.Voice != nil:
		setMedia(channels.MessageVoice, *msg.Voice)
	case msg.Audio != nil:
		setMedia(channels.MessageAudio, *msg.Audio)
	case msg.Video != nil:
		setMedia(channels.MessageVideo, *msg.Video)
	case msg.Document != nil:
		setMedia(channels.MessageDocument, *msg.Document)
	case msg.Sticker != nil:
		setMedia(channels.MessageSticker, *msg.Sticker)
	}
	return incoming
}

// ---------- Telegram Bot API Types ----------

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	MessageID      int         `json:"message_id"`
	From           *tgUser     `json:"from"`
	Chat           tgChat      `json:"chat"`
	Date           int         `json:"date"`
	Text           string      `json:"text"`
	Caption        string      `json:"caption"`
	ReplyToMessage *tgMessage  `json:"reply_to_message"`
	Photo          []tgFileRef `json:"photo"`
	Audio          *tgFileRef  `json:"audio"`
	Voice          *tgFileRef  `json:"voice"`
	Video          *tgFileRef  `json:"video"`
	Document       *tgFileRef  `json:"document"`
	Sticker        *tgFileRef  `json:"sticker"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	IsBot     bool   `json:"is_bot"`
}

type tgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup", "channel"
}

// tgFileRef covers the fields shared by PhotoSize, Voice, Audio, Video,
// Document and Sticker.
type tgFileRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type tgFile struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

type tgBotUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type tgResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// ---------- API Helpers ----------

// apiCall makes a JSON POST request to the Bot API.
func (t *Telegram) apiCall(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: creating request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, method)
}

func (t *Telegram) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result tgResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, result.Description)
	}
	return result.Result, nil
}

// getMe verifies the bot token and returns bot info.
func (t *Telegram) getMe(ctx context.Context) (*tgBotUser, error) {
	data, err := t.apiCall(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var user tgBotUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("telegram: parsing getMe: %w", err)
	}
	return &user, nil
}

// getUpdates fetches new updates using long polling.
func (t *Telegram) getUpdates(ctx context.Context, offset int64, limit, timeoutSecs int) ([]tgUpdate, error) {
	data, err := t.apiCall(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"limit":           limit,
		"timeout":         timeoutSecs,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, err
	}
	var updates []tgUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("telegram: parsing updates: %w", err)
	}
	return updates, nil
}

// getFile retrieves file info for downloading.
func (t *Telegram) getFile(ctx context.Context, fileID string) (*tgFile, error) {
	data, err := t.apiCall(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	var file tgFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("telegram: parsing getFile: %w", err)
	}
	return &file, nil
}

// upload sends a file using multipart form data.
func (t *Telegram) upload(ctx context.Context, method, field, chatID string, file channels.File) error {
	id, err := t.chatID(chatID)
	if err != nil {
		return err
	}
	if len(file.Data) == 0 {
		return fmt.Errorf("telegram: media data is required for upload")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", strconv.FormatInt(id, 10))
	if file.Caption != "" {
		_ = w.WriteField("caption", file.Caption)
	}

	filename := file.Filename
	if filename == "" {
		filename = "file"
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("telegram: creating form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("telegram: writing file data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("telegram: closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, &buf)
	if err != nil {
		return fmt.Errorf("telegram: creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	_, err = t.do(req, method)
	return err
}

var _ channels.Channel = (*Telegram)(nil)
