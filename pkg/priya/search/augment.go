package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/priyabot/priya/pkg/priya/metrics"
)

// BlockKind names the source of a context block.
type BlockKind string

const (
	BlockVideo BlockKind = "video"
	BlockWeb   BlockKind = "web"
)

// Block is formatted search context handed to the model as a system turn.
type Block struct {
	Kind    BlockKind
	Content string
}

// Keyword sets that trigger each lookup. Matching is a case-insensitive
// substring test against the raw message.
var (
	VideoKeywords = []string{"youtube", "video", "youtub", "youtube link", "youtub link", "youtuber"}
	WebKeywords   = []string{"latest", "news", "price", "what is", "who is", "define", "search", "gold price", "dimond price", "bitcoin price"}
)

// VideoSearcher finds videos.
type VideoSearcher interface {
	Search(ctx context.Context, query string, max int) ([]VideoResult, error)
}

// WebSearcher finds web pages.
type WebSearcher interface {
	Search(ctx context.Context, query string, max int) ([]WebResult, error)
}

// AugmenterConfig bounds results and caching.
type AugmenterConfig struct {
	MaxVideo int           `yaml:"max_video"`
	MaxWeb   int           `yaml:"max_web"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultAugmenterConfig returns 3 videos, 5 web results and a 5m cache.
func DefaultAugmenterConfig() AugmenterConfig {
	return AugmenterConfig{MaxVideo: 3, MaxWeb: 5, CacheTTL: 5 * time.Minute}
}

// Augmenter runs the keyword-triggered lookups for one inbound message.
type Augmenter struct {
	video  VideoSearcher
	web    WebSearcher
	cfg    AugmenterConfig
	cache  *cache.Cache
	logger *slog.Logger
}

// NewAugmenter creates an augmenter. Either searcher may be nil, which
// disables that lookup.
func NewAugmenter(video VideoSearcher, web WebSearcher, cfg AugmenterConfig, logger *slog.Logger) *Augmenter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultAugmenterConfig()
	if cfg.MaxVideo <= 0 {
		cfg.MaxVideo = def.MaxVideo
	}
	if cfg.MaxWeb <= 0 {
		cfg.MaxWeb = def.MaxWeb
	}
	a := &Augmenter{
		video:  video,
		web:    web,
		cfg:    cfg,
		logger: logger.With("component", "augmenter"),
	}
	if cfg.CacheTTL > 0 {
		a.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return a
}

// Triggers reports which lookups the text triggers.
func Triggers(text string) (video, web bool) {
	lower := strings.ToLower(text)
	return containsAny(lower, VideoKeywords), containsAny(lower, WebKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Augment returns the context blocks for text, video before web. Failed or
// empty lookups contribute nothing.
func (a *Augmenter) Augment(ctx context.Context, text string) []Block {
	wantVideo, wantWeb := Triggers(text)
	wantVideo = wantVideo && a.video != nil
	wantWeb = wantWeb && a.web != nil
	if !wantVideo && !wantWeb {
		return nil
	}

	var videoBlock, webBlock string
	g, gctx := errgroup.WithContext(ctx)
	if wantVideo {
		g.Go(func() error {
			videoBlock = a.lookup(gctx, BlockVideo, text, func(ctx context.Context) (string, error) {
				res, err := a.video.Search(ctx, text, a.cfg.MaxVideo)
				return FormatVideo(res), err
			})
			return nil
		})
	}
	if wantWeb {
		g.Go(func() error {
			webBlock = a.lookup(gctx, BlockWeb, text, func(ctx context.Context) (string, error) {
				res, err := a.web.Search(ctx, text, a.cfg.MaxWeb)
				return FormatWeb(res), err
			})
			return nil
		})
	}
	_ = g.Wait()

	var blocks []Block
	if videoBlock != "" {
		blocks = append(blocks, Block{Kind: BlockVideo, Content: videoBlock})
	}
	if webBlock != "" {
		blocks = append(blocks, Block{Kind: BlockWeb, Content: webBlock})
	}
	return blocks
}

func (a *Augmenter) lookup(ctx context.Context, kind BlockKind, query string, fn func(context.Context) (string, error)) string {
	key := string(kind) + "\x00" + strings.ToLower(strings.TrimSpace(query))
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			metrics.AugmentLookups.WithLabelValues(string(kind), "cached").Inc()
			return v.(string)
		}
	}

	block, err := fn(ctx)
	switch {
	case err != nil:
		metrics.AugmentLookups.WithLabelValues(string(kind), "failure").Inc()
		a.logger.Warn("lookup failed", "kind", kind, "error", err)
		return ""
	case block == "":
		metrics.AugmentLookups.WithLabelValues(string(kind), "empty").Inc()
		return ""
	}

	metrics.AugmentLookups.WithLabelValues(string(kind), "success").Inc()
	if a.cache != nil {
		a.cache.SetDefault(key, block)
	}
	return block
}

// FormatVideo renders video results as a context block, or "" when empty.
func FormatVideo(results []VideoResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n[SYSTEM: YouTube Results]\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s\n  📺 %s\n  🔗 %s\n\n", r.Title, r.Channel, r.URL)
	}
	return b.String()
}

// FormatWeb renders web results as a context block, or "" when empty.
func FormatWeb(results []WebResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n[SYSTEM: Live Web Search]\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s\n  %s\n  🔗 %s\n\n", r.Title, r.Snippet, r.URL)
	}
	return b.String()
}
