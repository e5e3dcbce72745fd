package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/priyabot/priya/pkg/priya/channels"
	"github.com/priyabot/priya/pkg/priya/imagegen"
	"github.com/priyabot/priya/pkg/priya/llm"
	"github.com/priyabot/priya/pkg/priya/memory"
	"github.com/priyabot/priya/pkg/priya/tts"
)

// sentItem is one outbound call recorded by fakeChannel.
type sentItem struct {
	Kind   string // text, document, voice, photo, ref
	ChatID string
	Text   string
	File   channels.File
	Ref    channels.MediaRef
}

type fakeChannel struct {
	mu         sync.Mutex
	sent       []sentItem
	activities []channels.Activity
	downloads  []string
	files      map[string][]byte
	failChats  map[string]bool

	activityErr error

	in           chan *channels.IncomingMessage
	connected    bool
	disconnected bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		files:     make(map[string][]byte),
		failChats: make(map[string]bool),
		in:        make(chan *channels.IncomingMessage, 16),
	}
}

var errSendFailed = errors.New("send failed")

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeChannel) Receive() <-chan *channels.IncomingMessage { return f.in }

func (f *fakeChannel) record(item sentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChats[item.ChatID] {
		return errSendFailed
	}
	f.sent = append(f.sent, item)
	return nil
}

func (f *fakeChannel) SendText(_ context.Context, chatID, text string) error {
	return f.record(sentItem{Kind: "text", ChatID: chatID, Text: text})
}

func (f *fakeChannel) SendDocument(_ context.Context, chatID string, file channels.File) error {
	return f.record(sentItem{Kind: "document", ChatID: chatID, File: file})
}

func (f *fakeChannel) SendVoice(_ context.Context, chatID string, file channels.File) error {
	return f.record(sentItem{Kind: "voice", ChatID: chatID, File: file})
}

func (f *fakeChannel) SendPhoto(_ context.Context, chatID string, file channels.File) error {
	return f.record(sentItem{Kind: "photo", ChatID: chatID, File: file})
}

func (f *fakeChannel) SendMediaRef(_ context.Context, chatID string, ref channels.MediaRef) error {
	return f.record(sentItem{Kind: "ref", ChatID: chatID, Ref: ref})
}

func (f *fakeChannel) SendActivity(_ context.Context, _ string, a channels.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, a)
	return f.activityErr
}

func (f *fakeChannel) Download(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, fileID)
	data, ok := f.files[fileID]
	if !ok {
		return nil, channels.ErrMediaDownloadFailed
	}
	return data, nil
}

func (f *fakeChannel) items() []sentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentItem(nil), f.sent...)
}

func (f *fakeChannel) kinds() []string {
	var kinds []string
	for _, it := range f.items() {
		kinds = append(kinds, it.Kind)
	}
	return kinds
}

func (f *fakeChannel) texts() []string {
	var texts []string
	for _, it := range f.items() {
		if it.Kind == "text" {
			texts = append(texts, it.Text)
		}
	}
	return texts
}

func (f *fakeChannel) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.activities = nil
	f.downloads = nil
}

type fakeCompleter struct {
	mu          sync.Mutex
	reply       string
	description string
	calls       [][]llm.Message
	described   int
	panicWith   any
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	return f.reply
}

func (f *fakeCompleter) DescribeImage(context.Context, []byte, string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.described++
	return f.description
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeCompleter) lastCall() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// stubTier is a speech tier with a scripted outcome.
type stubTier struct {
	name  string
	audio *tts.Audio
	err   error
	panic bool
	calls int
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Synthesize(context.Context, string, tts.Voice) (*tts.Audio, error) {
	s.calls++
	if s.panic {
		panic("provider client blew up")
	}
	return s.audio, s.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeImages struct {
	img    *imagegen.Image
	err    error
	prompt string
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (*imagegen.Image, error) {
	f.prompt = prompt
	return f.img, f.err
}

type harness struct {
	bot   *Bot
	ch    *fakeChannel
	store *memory.MemStore
	llm   *fakeCompleter
}

const adminID = "1000"

// newHarness builds a Bot over fakes. mutate may adjust config and deps.
func newHarness(t *testing.T, mutate func(*Config, *Deps)) *harness {
	t.Helper()
	h := &harness{
		ch:    newFakeChannel(),
		store: memory.NewMemStore(memory.DefaultHistoryLimit),
		llm:   &fakeCompleter{reply: "Hello bestie 🥰", description: "a cute cat"},
	}
	cfg := DefaultConfig()
	cfg.Admins = []string{adminID}
	cfg.BroadcastDelay = 0
	deps := Deps{Channel: h.ch, Store: h.store, LLM: h.llm}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	b, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.bot = b
	return h
}

func (h *harness) send(msg *channels.IncomingMessage) {
	if msg.Channel == "" {
		msg.Channel = "fake"
	}
	if msg.ChatID == "" {
		msg.ChatID = msg.From
	}
	if msg.Type == "" {
		msg.Type = channels.MessageText
	}
	h.bot.Handle(context.Background(), msg)
}

func (h *harness) text(from, content string) {
	h.send(&channels.IncomingMessage{From: from, Content: content})
}
