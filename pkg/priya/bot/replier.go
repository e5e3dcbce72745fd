package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/priyabot/priya/pkg/priya/archive"
	"github.com/priyabot/priya/pkg/priya/channels"
	"github.com/priyabot/priya/pkg/priya/memory"
	"github.com/priyabot/priya/pkg/priya/metrics"
	"github.com/priyabot/priya/pkg/priya/tts"
)

// Speaker turns reply text into a voice note, or nil when nothing could be
// synthesized. *tts.Cascade satisfies it.
type Speaker interface {
	Synthesize(ctx context.Context, text string, voice tts.Voice) *tts.Audio
}

// Replier delivers one final reply: text always, then the code archive and
// the voice note when the user has voice mode on.
type Replier struct {
	ch     channels.Channel
	store  memory.Store
	speech Speaker
	logger *slog.Logger
}

// NewReplier creates a Replier. A nil speech disables voice notes.
func NewReplier(ch channels.Channel, store memory.Store, speech Speaker, logger *slog.Logger) *Replier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replier{
		ch:     ch,
		store:  store,
		speech: speech,
		logger: logger.With("component", "replier"),
	}
}

// Deliver sends the reply. Text goes out first and exactly once; every later
// failure is logged and absorbed.
func (r *Replier) Deliver(ctx context.Context, chatID, userID, text string) {
	r.deliver(ctx, r.logger, chatID, userID, text)
}

func (r *Replier) deliver(ctx context.Context, logger *slog.Logger, chatID, userID, text string) {
	if err := r.ch.SendText(ctx, chatID, text); err != nil {
		logger.Error("failed to send text reply", "error", err)
	} else {
		metrics.RepliesDelivered.WithLabelValues("text").Inc()
	}

	profile, err := r.store.Profile(ctx, userID)
	if err != nil {
		logger.Warn("failed to load profile, skipping voice extras", "error", err)
		return
	}
	if !profile.VoiceMode {
		return
	}

	r.sendArchive(ctx, logger, chatID, text)
	r.sendVoice(ctx, logger, chatID, text, tts.Voice{
		Engine:   string(profile.VoiceEngine),
		Identity: profile.VoiceIdentity,
	})
}

func (r *Replier) sendArchive(ctx context.Context, logger *slog.Logger, chatID, text string) {
	data, err := archive.Build(text)
	if errors.Is(err, archive.ErrNothingToPackage) {
		return
	}
	if err != nil {
		logger.Warn("failed to build code archive", "error", err)
		return
	}

	r.activity(ctx, logger, chatID, channels.ActivityUploadDocument)
	err = r.ch.SendDocument(ctx, chatID, channels.File{
		Data:     data,
		Filename: archive.Filename,
		MimeType: "application/zip",
		Caption:  archive.Caption,
	})
	if err != nil {
		logger.Error("failed to send code archive", "error", err)
		return
	}
	metrics.RepliesDelivered.WithLabelValues("archive").Inc()
}

func (r *Replier) sendVoice(ctx context.Context, logger *slog.Logger, chatID, text string, voice tts.Voice) {
	if r.speech == nil {
		return
	}
	r.activity(ctx, logger, chatID, channels.ActivityRecordVoice)

	audio := r.speech.Synthesize(ctx, text, voice)
	if audio == nil || len(audio.Data) == 0 {
		logger.Debug("no voice note produced")
		return
	}
	err := r.ch.SendVoice(ctx, chatID, channels.File{
		Data:     audio.Data,
		Filename: audio.Filename,
		MimeType: audio.MimeType,
	})
	if err != nil {
		logger.Error("failed to send voice note", "error", err)
		return
	}
	metrics.RepliesDelivered.WithLabelValues("voice").Inc()
}

func (r *Replier) activity(ctx context.Context, logger *slog.Logger, chatID string, a channels.Activity) {
	if err := r.ch.SendActivity(ctx, chatID, a); err != nil {
		logger.Debug("chat action failed", "activity", string(a), "error", err)
	}
}
