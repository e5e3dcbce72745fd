// Package bot is the per-update pipeline of priya. It receives messages
// from a channels.Channel, applies the maintenance and ban gates, answers
// commands and runs the conversation turn:
//
//	persist inbound → typing → augment → compose → complete → persist outbound → deliver
//
// Each update is handled in its own goroutine. Turns of the same user can be
// serialized in arrival order (Config.SerializePerUser).
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/priyabot/priya/pkg/priya/channels"
	"github.com/priyabot/priya/pkg/priya/imagegen"
	"github.com/priyabot/priya/pkg/priya/llm"
	"github.com/priyabot/priya/pkg/priya/media"
	"github.com/priyabot/priya/pkg/priya/memory"
	"github.com/priyabot/priya/pkg/priya/metrics"
	"github.com/priyabot/priya/pkg/priya/search"
)

// Completer produces reply text. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) string
	DescribeImage(ctx context.Context, image []byte, mimeType string) string
}

// Augmenter gathers search context for a message. *search.Augmenter
// satisfies it.
type Augmenter interface {
	Augment(ctx context.Context, text string) []search.Block
}

// ImageGenerator serves the /image command. *imagegen.Generator satisfies it.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*imagegen.Image, error)
}

// Config holds pipeline settings.
type Config struct {
	// Admins are the user ids allowed to run admin commands.
	Admins []string `yaml:"admins"`

	// SystemPrompt is prepended to every completion request.
	SystemPrompt string `yaml:"system_prompt"`

	// HistoryLimit is the number of stored turns sent to the model.
	HistoryLimit int `yaml:"history_limit"`

	// SerializePerUser processes one update at a time per user id, in the
	// order the updates arrived.
	SerializePerUser bool `yaml:"serialize_per_user"`

	// BroadcastDelay is the pause between two broadcast sends.
	BroadcastDelay time.Duration `yaml:"broadcast_delay"`

	// Media bounds accepted attachment sizes.
	Media media.Limits `yaml:"media"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:     DefaultSystemPrompt,
		HistoryLimit:     memory.DefaultHistoryLimit,
		SerializePerUser: true,
		BroadcastDelay:   time.Second,
		Media:            media.DefaultLimits(),
	}
}

// Deps are the collaborators of a Bot. Channel, Store and LLM are required;
// the rest disable their feature when nil.
type Deps struct {
	Channel     channels.Channel
	Store       memory.Store
	LLM         Completer
	Augmenter   Augmenter
	Speech      Speaker
	Transcriber media.Transcriber
	Images      ImageGenerator
	Logger      *slog.Logger
}

// Bot wires a transport to the conversation pipeline.
type Bot struct {
	cfg         Config
	ch          channels.Channel
	store       memory.Store
	llm         Completer
	augmenter   Augmenter
	transcriber media.Transcriber
	images      ImageGenerator
	gate        *Gate
	replier     *Replier
	locks       *userLocks
	logger      *slog.Logger

	wg sync.WaitGroup
}

// New creates a Bot.
func New(cfg Config, deps Deps) (*Bot, error) {
	if deps.Channel == nil {
		return nil, errors.New("bot: channel is required")
	}
	if deps.Store == nil {
		return nil, errors.New("bot: store is required")
	}
	if deps.LLM == nil {
		return nil, errors.New("bot: completion client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = memory.DefaultHistoryLimit
	}
	if cfg.Media == (media.Limits{}) {
		cfg.Media = media.DefaultLimits()
	}

	b := &Bot{
		cfg:         cfg,
		ch:          deps.Channel,
		store:       deps.Store,
		llm:         deps.LLM,
		augmenter:   deps.Augmenter,
		transcriber: deps.Transcriber,
		images:      deps.Images,
		gate:        NewGate(cfg.Admins),
		locks:       newUserLocks(),
		logger:      logger.With("component", "bot"),
	}
	b.replier = NewReplier(deps.Channel, deps.Store, deps.Speech, logger)
	return b, nil
}

// Gate returns the bot's maintenance gate.
func (b *Bot) Gate() *Gate { return b.gate }

// Run connects the channel and handles updates until ctx is cancelled or
// the channel closes its receive stream. It waits for in-flight updates
// before disconnecting.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.ch.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connecting %s: %w", b.ch.Name(), err)
	}
	b.logger.Info("bot running",
		"channel", b.ch.Name(),
		"admins", len(b.gate.admins),
		"serialize_per_user", b.cfg.SerializePerUser,
	)

	defer b.shutdown()
	incoming := b.ch.Receive()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			if msg == nil {
				continue
			}
			t := b.reserve(msg)
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handle(ctx, msg, t)
			}()
		}
	}
}

func (b *Bot) shutdown() {
	b.wg.Wait()
	if err := b.ch.Disconnect(); err != nil {
		b.logger.Warn("disconnect failed", "channel", b.ch.Name(), "error", err)
	}
	b.logger.Info("bot stopped")
}

// Handle processes one update synchronously. A panic in any handler is
// recovered and logged.
func (b *Bot) Handle(ctx context.Context, msg *channels.IncomingMessage) {
	b.handle(ctx, msg, b.reserve(msg))
}

// reserve queues msg behind the earlier updates of its sender. It returns
// nil when updates are not serialized.
func (b *Bot) reserve(msg *channels.IncomingMessage) *turn {
	if !b.cfg.SerializePerUser || msg.From == "" {
		return nil
	}
	return b.locks.acquire(msg.From)
}

func (b *Bot) handle(ctx context.Context, msg *channels.IncomingMessage, t *turn) {
	if t != nil {
		defer t.release()
		t.wait()
	}

	start := time.Now()
	metrics.InFlightUpdates.Inc()
	defer metrics.InFlightUpdates.Dec()

	logger := b.logger.With(
		"req_id", uuid.NewString(),
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"from", msg.From,
		"type", string(msg.Type),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
		metrics.UpdateDuration.WithLabelValues(string(msg.Type)).Observe(time.Since(start).Seconds())
	}()

	b.dispatch(ctx, msg, logger)
	logger.Debug("update handled", "duration_ms", time.Since(start).Milliseconds())
}

// dispatch applies the gates and routes the update:
// admin command → maintenance → ban → user command or content pipeline.
func (b *Bot) dispatch(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	name, args, isCmd := parseCommand(msg.Content)
	if isCmd && msg.Type != channels.MessageText && !b.captionCommand(msg, name) {
		name, args, isCmd = "", "", false
	}

	if isCmd {
		if handler, ok := adminCommands[name]; ok {
			if !b.gate.IsAdmin(msg.From) {
				logger.Debug("ignoring admin command from non-admin", "command", name)
				return
			}
			logger.Info("admin command", "command", name)
			handler(b, ctx, msg, args, logger)
			return
		}
	}

	if b.gate.Maintenance() {
		b.say(ctx, logger, msg.ChatID, textMaintenance)
		return
	}

	banned, err := b.store.IsBanned(ctx, msg.From)
	if err != nil {
		logger.Warn("ban lookup failed, continuing", "error", err)
	}
	if banned {
		logger.Info("refusing banned user")
		b.say(ctx, logger, msg.ChatID, bannedNotice(msg, name))
		return
	}

	b.refreshName(ctx, msg, logger)

	if isCmd {
		handler, ok := userCommands[name]
		if !ok {
			logger.Debug("ignoring unknown command", "command", name)
			return
		}
		handler(b, ctx, msg, args, logger)
		return
	}

	switch msg.Type {
	case channels.MessageText:
		b.handleText(ctx, msg, logger)
	case channels.MessageVoice, channels.MessageAudio:
		b.handleVoice(ctx, msg, logger)
	case channels.MessageImage:
		b.handlePhoto(ctx, msg, logger)
	default:
		logger.Debug("ignoring unsupported message type")
	}
}

// captionCommand reports whether a command in a media caption is honoured.
// Only admins get admin commands from captions, for /user_send with an
// attachment; any other caption is content.
func (b *Bot) captionCommand(msg *channels.IncomingMessage, name string) bool {
	_, admin := adminCommands[name]
	return admin && b.gate.IsAdmin(msg.From)
}

func bannedNotice(msg *channels.IncomingMessage, command string) string {
	if command == "/image" {
		return textBannedImage
	}
	switch msg.Type {
	case channels.MessageVoice, channels.MessageAudio:
		return textBannedVoice
	case channels.MessageImage:
		return textBannedPhoto
	default:
		return textBannedText
	}
}

// ---------- Pipelines ----------

func (b *Bot) handleText(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return
	}
	b.remember(ctx, logger, msg.From, memory.RoleUser, text)
	b.activity(ctx, logger, msg.ChatID, channels.ActivityTyping)

	var blocks []search.Block
	if b.augmenter != nil {
		blocks = b.augmenter.Augment(ctx, text)
	}
	b.respond(ctx, msg, text, blocks, logger)
}

func (b *Bot) handleVoice(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	if msg.Media == nil {
		return
	}
	if err := b.cfg.Media.Check(media.KindAudio, msg.Media.FileSize); err != nil {
		logger.Info("refusing oversized audio", "size", msg.Media.FileSize)
		b.say(ctx, logger, msg.ChatID, textTooLarge)
		return
	}
	b.activity(ctx, logger, msg.ChatID, channels.ActivityTyping)

	data, ok := b.download(ctx, msg, media.KindAudio, logger)
	if !ok {
		return
	}

	text := b.transcribe(ctx, data, msg.Media.Filename, logger)
	b.remember(ctx, logger, msg.From, memory.RoleUser, text)
	b.respond(ctx, msg, text, nil, logger)
}

func (b *Bot) transcribe(ctx context.Context, data []byte, filename string, logger *slog.Logger) string {
	if b.transcriber == nil {
		return textVoicePlaceholder
	}
	text, err := b.transcriber.Transcribe(ctx, data, filename)
	if err != nil {
		logger.Warn("transcription failed, using placeholder", "error", err)
		return textVoicePlaceholder
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return textVoicePlaceholder
	}
	return text
}

func (b *Bot) handlePhoto(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	if msg.Media == nil {
		return
	}
	if err := b.cfg.Media.Check(media.KindImage, msg.Media.FileSize); err != nil {
		logger.Info("refusing oversized image", "size", msg.Media.FileSize)
		b.say(ctx, logger, msg.ChatID, textTooLarge)
		return
	}
	b.activity(ctx, logger, msg.ChatID, channels.ActivityTyping)

	data, ok := b.download(ctx, msg, media.KindImage, logger)
	if !ok {
		return
	}

	mimeType := msg.Media.MimeType
	if mimeType == "" {
		mimeType = media.DetectMimeType(data, msg.Media.Filename)
	}
	description := b.llm.DescribeImage(ctx, data, mimeType)
	entry := imageEntryPrefix + description
	b.remember(ctx, logger, msg.From, memory.RoleUser, entry)
	b.respond(ctx, msg, entry, nil, logger)
}

// download fetches the attachment and re-checks its real size. Failures are
// reported to the user and ok is false.
func (b *Bot) download(ctx context.Context, msg *channels.IncomingMessage, kind media.Kind, logger *slog.Logger) ([]byte, bool) {
	data, err := b.ch.Download(ctx, msg.Media.FileID)
	if err != nil {
		logger.Warn("attachment download failed", "file_id", msg.Media.FileID, "error", err)
		b.say(ctx, logger, msg.ChatID, textDownloadFailed)
		return nil, false
	}
	if err := b.cfg.Media.Check(kind, int64(len(data))); err != nil {
		logger.Info("refusing oversized attachment", "size", len(data))
		b.say(ctx, logger, msg.ChatID, textTooLarge)
		return nil, false
	}
	return data, true
}

// respond composes the request from stored history, completes it, stores
// the reply and delivers it. latest is used as the user turn when history
// cannot be read.
func (b *Bot) respond(ctx context.Context, msg *channels.IncomingMessage, latest string, blocks []search.Block, logger *slog.Logger) {
	history, err := b.store.History(ctx, msg.From, b.cfg.HistoryLimit)
	if err != nil {
		logger.Warn("failed to load history", "error", err)
	}
	if len(history) == 0 {
		history = []memory.Entry{{UserID: msg.From, Role: memory.RoleUser, Content: latest}}
	}

	messages := Compose(b.cfg.SystemPrompt, history, blocks)
	reply := b.llm.Complete(ctx, messages)
	logger.Info("reply ready",
		"history", len(history),
		"context_blocks", len(blocks),
		"reply_len", len(reply),
	)

	b.remember(ctx, logger, msg.From, memory.RoleAssistant, reply)
	b.replier.deliver(ctx, logger, msg.ChatID, msg.From, reply)
}

// Compose builds the completion request: the system prompt, then the
// history oldest first, with each context block inserted as a system turn
// right before the latest user turn. Without a user turn the blocks go last.
func Compose(systemPrompt string, history []memory.Entry, blocks []search.Block) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+len(blocks)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	insertAt := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == memory.RoleUser {
			insertAt = i
			break
		}
	}

	for i, e := range history {
		if i == insertAt {
			messages = appendBlocks(messages, blocks)
		}
		messages = append(messages, llm.Message{Role: roleFor(e.Role), Content: e.Content})
	}
	if insertAt == len(history) {
		messages = appendBlocks(messages, blocks)
	}
	return messages
}

func appendBlocks(messages []llm.Message, blocks []search.Block) []llm.Message {
	for _, blk := range blocks {
		if blk.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: blk.Content})
	}
	return messages
}

func roleFor(r memory.Role) llm.Role {
	if r == memory.RoleAssistant {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

// ---------- Helpers ----------

func (b *Bot) remember(ctx context.Context, logger *slog.Logger, userID string, role memory.Role, content string) {
	if err := b.store.Append(ctx, userID, role, content); err != nil {
		logger.Error("failed to store turn", "role", string(role), "error", err)
	}
}

func (b *Bot) refreshName(ctx context.Context, msg *channels.IncomingMessage, logger *slog.Logger) {
	if msg.FromName == "" || msg.From == "" {
		return
	}
	if err := b.store.SetDisplayName(ctx, msg.From, msg.FromName); err != nil {
		logger.Debug("failed to refresh display name", "error", err)
	}
}

// say sends a short notice. Failures are logged only.
func (b *Bot) say(ctx context.Context, logger *slog.Logger, chatID, text string) {
	if err := b.ch.SendText(ctx, chatID, text); err != nil {
		logger.Warn("failed to send notice", "error", err)
	}
}

func (b *Bot) activity(ctx context.Context, logger *slog.Logger, chatID string, a channels.Activity) {
	if err := b.ch.SendActivity(ctx, chatID, a); err != nil {
		logger.Debug("chat action failed", "activity", string(a), "error", err)
	}
}
