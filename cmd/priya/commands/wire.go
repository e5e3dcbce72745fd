package commands

import (
	"log/slog"

	"github.com/priyabot/priya/pkg/priya/bot"
	"github.com/priyabot/priya/pkg/priya/channels"
	"github.com/priyabot/priya/pkg/priya/config"
	"github.com/priyabot/priya/pkg/priya/imagegen"
	"github.com/priyabot/priya/pkg/priya/llm"
	"github.com/priyabot/priya/pkg/priya/media"
	"github.com/priyabot/priya/pkg/priya/memory"
	"github.com/priyabot/priya/pkg/priya/search"
	"github.com/priyabot/priya/pkg/priya/tts"
)

// newPipeline builds the bot around a transport and a store. Optional
// collaborators are only set when they have something to work with, so
// the bot sees a nil interface rather than a disabled client.
func newPipeline(cfg *config.Config, ch channels.Channel, store memory.Store, logger *slog.Logger) (*bot.Bot, error) {
	deps := bot.Deps{
		Channel: ch,
		Store:   store,
		LLM:     llm.New(cfg.LLM, logger),
		Images:  imagegen.New(cfg.Images, logger),
		Logger:  logger,
	}

	ffmpeg := media.NewFFmpeg(cfg.Speech.FFmpegPath)
	var tiers []tts.Synthesizer
	if len(cfg.Speech.ElevenLabs.Keys) > 0 {
		if ffmpeg.Available() {
			tiers = append(tiers, tts.NewElevenLabs(cfg.Speech.ElevenLabs, ffmpeg, logger))
		} else {
			logger.Warn("ffmpeg not found, cloned voices disabled", "binary", ffmpeg.Binary)
		}
	}
	tiers = append(tiers, tts.NewGoogleTranslate(cfg.Speech.Google, logger))
	deps.Speech = tts.NewCascade(logger, tiers...)

	if len(cfg.Transcription.Keys) > 0 {
		deps.Transcriber = media.NewWhisper(cfg.Transcription, logger)
	} else {
		logger.Info("no transcription keys, voice notes get a placeholder")
	}

	var video search.VideoSearcher
	if yt := search.NewYouTube(cfg.Search.YouTube, logger); yt.Enabled() {
		video = yt
	}
	var web search.WebSearcher
	if serp := search.NewSerp(cfg.Search.Serp, logger); serp.Enabled() {
		web = serp
	}
	if video != nil || web != nil {
		deps.Augmenter = search.NewAugmenter(video, web, cfg.Search.Augment, logger)
	}

	logger.Info("pipeline configured",
		"completion_keys", len(cfg.LLM.Keys),
		"speech_tiers", len(tiers),
		"transcription", deps.Transcriber != nil,
		"video_search", video != nil,
		"web_search", web != nil,
	)
	return bot.New(cfg.Bot, deps)
}
