package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/priyabot/priya/pkg/priya/channels"
	"github.com/priyabot/priya/pkg/priya/memory"
)

type commandFunc func(b *Bot, ctx context.Context, msg *channels.IncomingMessage, args string, logger *slog.Logger)

// Commands are prefixed with "/" and may carry a "@botname" suffix.
//
// User commands (subject to the maintenance and ban gates):
//
//	/start                 - Greeting
//	/voice, /voiceoff      - Toggle voice mode
//	/onpriya, /offpriya    - Select or clear the "priya" cloned voice
//	/onrose, /offrose      - Select or clear the "rose" cloned voice
//	/image <prompt>        - Generate an image
//
// Admin commands (silently ignored for everyone else):
//
//	/menu                  - List admin commands
//	/banuser <id>          - Ban a user
//	/unbanuser <id>        - Lift a ban
//	/all_send [text]       - Broadcast text, or the replied-to message
//	/user_send <id> [text] - Send text or an attachment to one user
//	/update, /updateoff    - Toggle maintenance mode
var userCommands = map[string]commandFunc{
	"/start":    (*Bot).startCommand,
	"/voice":    (*Bot).voiceOnCommand,
	"/voiceoff": (*Bot).voiceOffCommand,
	"/onpriya":  voiceSelect("priya", textPriyaOn),
	"/offpriya": voiceClear(textPriyaOff),
	"/onrose":   voiceSelect("rose", textRoseOn),
	"/offrose":  voiceClear(textRoseOff),
	"/image":    (*Bot).imageCommand,
}

var adminCommands = map[string]commandFunc{
	"/menu":      (*Bot).menuCommand,
	"/banuser":   (*Bot).banCommand,
	"/unbanuser": (*Bot).unbanCommand,
	"/all_send":  (*Bot).broadcastCommand,
	"/user_send": (*Bot).userSendCommand,
	"/update":    (*Bot).updateCommand,
	"/updateoff": (*Bot).updateOffCommand,
}

// parseCommand splits "/name@bot rest" into the lower-cased name and the
// trimmed remainder.
func parseCommand(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", "", false
	}
	name, args = content, ""
	if i := strings.IndexFunc(content, unicode.IsSpace); i >= 0 {
		name, args = content[:i], content[i:]
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "/" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// ---------- User commands ----------

func (b *Bot) startCommand(ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
	b.say(ctx, logger, msg.ChatID, textStart)
}

func (b *Bot) voiceOnCommand(ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
	if err := b.store.SetVoiceMode(ctx, msg.From, true); err != nil {
		logger.Error("failed to enable voice mode", "error", err)
		return
	}
	b.say(ctx, logger, msg.ChatID, textVoiceOn)
}

func (b *Bot) voiceOffCommand(ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
	if err := b.store.SetVoiceMode(ctx, msg.From, false); err != nil {
		logger.Error("failed to disable voice mode", "error", err)
		return
	}
	b.say(ctx, logger, msg.ChatID, textVoiceOff)
}

// voiceSelect turns voice mode on with a cloned identity.
func voiceSelect(identity, reply string) commandFunc {
	return func(b *Bot, ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
		if err := b.store.SetVoiceMode(ctx, msg.From, true); err != nil {
			logger.Error("failed to enable voice mode", "error", err)
			return
		}
		if err := b.store.SetVoice(ctx, msg.From, memory.VoiceCloned, identity); err != nil {
			logger.Error("failed to select voice", "identity", identity, "error", err)
			return
		}
		b.say(ctx, logger, msg.ChatID, reply)
	}
}

// voiceClear goes back to the default voice. Voice mode stays as it is.
func voiceClear(reply string) commandFunc {
	return func(b *Bot, ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
		if err := b.store.SetVoice(ctx, msg.From, memory.VoiceDefault, ""); err != nil {
			logger.Error("failed to reset voice", "error", err)
			return
		}
		b.say(ctx, logger, msg.ChatID, reply)
	}
}

func (b *Bot) imageCommand(ctx context.Context, msg *channels.IncomingMessage, prompt string, logger *slog.Logger) {
	if prompt == "" {
		b.say(ctx, logger, msg.ChatID, textImageUsage)
		return
	}
	if b.images == nil {
		b.say(ctx, logger, msg.ChatID, textImageFailed)
		return
	}
	b.activity(ctx, logger, msg.ChatID, channels.ActivityUploadPhoto)

	img, err := b.images.Generate(ctx, prompt)
	if err != nil || img == nil || len(img.Data) == 0 {
		logger.Warn("image generation failed", "error", err)
		b.say(ctx, logger, msg.ChatID, textImageFailed)
		return
	}
	err = b.ch.SendPhoto(ctx, msg.ChatID, channels.File{
		Data:     img.Data,
		Filename: imageFilename,
		MimeType: img.MimeType,
		Caption:  textImageCaption + prompt,
	})
	if err != nil {
		logger.Error("failed to send generated image", "error", err)
	}
}

// ---------- Admin commands ----------

func (b *Bot) menuCommand(ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
	b.say(ctx, logger, msg.ChatID, textAdminMenu)
}

func (b *Bot) banCommand(ctx context.Context, msg *channels.IncomingMessage, args string, logger *slog.Logger) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.say(ctx, logger, msg.ChatID, textBanUsage)
		return
	}
	target := fields[0]
	if err := b.store.Ban(ctx, target, banReason); err != nil {
		logger.Error("ban failed", "target", target, "error", err)
		return
	}
	logger.Info("user banned", "target", target)
	b.say(ctx, logger, msg.ChatID, fmt.Sprintf(textBanned, target))
}

func (b *Bot) unbanCommand(ctx context.Context, msg *channels.IncomingMessage, args string, logger *slog.Logger) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.say(ctx, logger, msg.ChatID, textUnbanUsage)
		return
	}
	target := fields[0]
	if err := b.store.Unban(ctx, target); err != nil {
		logger.Error("unban failed", "target", target, "error", err)
		return
	}
	logger.Info("user unbanned", "target", target)
	b.say(ctx, logger, msg.ChatID, fmt.Sprintf(textUnbanned, target))
}

func (b *Bot) updateCommand(ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
	if b.gate.SetMaintenance(true) {
		logger.Info("maintenance mode on")
	}
	b.say(ctx, logger, msg.ChatID, textUpdateOn)
}

func (b *Bot) updateOffCommand(ctx context.Context, msg *channels.IncomingMessage, _ string, logger *slog.Logger) {
	if b.gate.SetMaintenance(false) {
		logger.Info("maintenance mode off")
	}
	b.say(ctx, logger, msg.ChatID, textUpdateOff)
}

func (b *Bot) userSendCommand(ctx context.Context, msg *channels.IncomingMessage, args string, logger *slog.Logger) {
	target, text := args, ""
	if i := strings.IndexFunc(args, unicode.IsSpace); i >= 0 {
		target, text = args[:i], strings.TrimSpace(args[i:])
	}
	if target == "" {
		b.say(ctx, logger, msg.ChatID, textUserSendUsage)
		return
	}

	ref, hasMedia := msg.Ref()
	if !hasMedia && text == "" {
		b.say(ctx, logger, msg.ChatID, textUserSendUsage)
		return
	}

	var err error
	if hasMedia {
		ref.Caption = text
		err = b.ch.SendMediaRef(ctx, target, ref)
	} else {
		err = b.ch.SendText(ctx, target, text)
	}
	if err != nil {
		logger.Warn("direct send failed", "target", target, "error", err)
		b.say(ctx, logger, msg.ChatID, fmt.Sprintf(textUserSendFailed, err))
		return
	}
	b.say(ctx, logger, msg.ChatID, textUserSendDone)
}

// broadcastCommand sends the replied-to message, or the command text, to
// every known user.
func (b *Bot) broadcastCommand(ctx context.Context, msg *channels.IncomingMessage, args string, logger *slog.Logger) {
	var send func(ctx context.Context, chatID string) error
	switch {
	case msg.ReplyTo != nil:
		reply := msg.ReplyTo
		if ref, ok := reply.Ref(); ok {
			send = func(ctx context.Context, chatID string) error {
				return b.ch.SendMediaRef(ctx, chatID, ref)
			}
		} else if reply.Content != "" {
			send = func(ctx context.Context, chatID string) error {
				return b.ch.SendText(ctx, chatID, reply.Content)
			}
		}
	case args != "":
		send = func(ctx context.Context, chatID string) error {
			return b.ch.SendText(ctx, chatID, args)
		}
	}
	if send == nil {
		b.say(ctx, logger, msg.ChatID, textBroadcastUsage)
		return
	}

	sent, failed := b.broadcast(ctx, logger, send)
	logger.Info("broadcast finished", "sent", sent, "failed", failed)
	b.say(ctx, logger, msg.ChatID, textBroadcastDone)
}

// broadcast runs send for each known user, one at a time, pausing
// BroadcastDelay between sends. Failed recipients are logged and skipped.
func (b *Bot) broadcast(ctx context.Context, logger *slog.Logger, send func(ctx context.Context, chatID string) error) (sent, failed int) {
	users, err := b.store.KnownUsers(ctx)
	if err != nil {
		logger.Error("failed to list users for broadcast", "error", err)
		return 0, 0
	}
	logger = logger.With("broadcast_id", uuid.NewString())
	logger.Info("broadcast started", "recipients", len(users))

	for i, userID := range users {
		if i > 0 && !sleepCtx(ctx, b.cfg.BroadcastDelay) {
			logger.Warn("broadcast interrupted", "remaining", len(users)-i)
			return sent, failed
		}
		if err := send(ctx, userID); err != nil {
			failed++
			logger.Warn("broadcast send failed", "recipient", userID, "error", err)
			continue
		}
		sent++
	}
	return sent, failed
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
