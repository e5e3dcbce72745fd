// Package console is a local transport for trying the pipeline from a
// terminal. Each line typed becomes a text message from the user
// "console"; replies are printed and attachments are written to an output
// directory.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/priyabot/priya/pkg/priya/channels"
)

// UserID is the sender and chat id of every console message.
const UserID = "console"

// Config configures the console transport.
type Config struct {
	Prompt      string
	HistoryFile string

	// OutDir receives documents, voice notes and photos.
	OutDir string

	// UserName is reported as the sender display name.
	UserName string

	// Stdin and Stdout override the terminal; used by tests.
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Console implements channels.Channel on top of readline.
type Console struct {
	cfg    Config
	logger *slog.Logger

	rl       *readline.Instance
	out      io.Writer
	messages chan *channels.IncomingMessage
	seq      atomic.Int64
	files    sync.Map // fileID -> path

	connected atomic.Bool
	done      chan struct{}
	writeMu   sync.Mutex
}

// New creates a console transport.
func New(cfg Config, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "you> "
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "./out"
	}
	if cfg.UserName == "" {
		cfg.UserName = "Console"
	}
	return &Console{
		cfg:      cfg,
		logger:   logger.With("component", "console"),
		messages: make(chan *channels.IncomingMessage, 16),
	}
}

// Name returns "console".
func (c *Console) Name() string { return "console" }

// Connect opens the line editor and starts reading input.
func (c *Console) Connect(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}
	if err := os.MkdirAll(c.cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("console: create output directory: %w", err)
	}

	rlCfg := &readline.Config{
		Prompt:          c.cfg.Prompt,
		HistoryFile:     c.cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if c.cfg.Stdin != nil {
		rlCfg.Stdin = c.cfg.Stdin
	}
	if c.cfg.Stdout != nil {
		rlCfg.Stdout = c.cfg.Stdout
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return fmt.Errorf("console: opening line editor: %w", err)
	}
	c.rl = rl
	c.out = rl.Stdout()
	c.done = make(chan struct{})
	c.connected.Store(true)

	go c.readLoop(ctx)
	return nil
}

// Disconnect closes the line editor. The Receive channel closes once the
// read loop exits.
func (c *Console) Disconnect() error {
	if !c.connected.Swap(false) {
		return nil
	}
	err := c.rl.Close()
	<-c.done
	return err
}

// Done is closed when input ends (EOF, Ctrl-C or Disconnect).
func (c *Console) Done() <-chan struct{} { return c.done }

// Receive returns the incoming messages channel.
func (c *Console) Receive() <-chan *channels.IncomingMessage { return c.messages }

func (c *Console) readLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.messages)

	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return
			}
			continue
		}
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		msg := &channels.IncomingMessage{
			ID:        strconv.FormatInt(c.seq.Add(1), 10),
			Channel:   "console",
			From:      UserID,
			FromName:  c.cfg.UserName,
			ChatID:    UserID,
			Type:      channels.MessageText,
			Content:   line,
			Timestamp: time.Now(),
		}
		select {
		case c.messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Console) printf(format string, args ...any) error {
	if !c.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := fmt.Fprintf(c.out, format, args...)
	return err
}

// SendText prints the reply.
func (c *Console) SendText(_ context.Context, chatID, text string) error {
	return c.printf("priya> %s\n", text)
}

// SendDocument writes the document to the output directory.
func (c *Console) SendDocument(_ context.Context, chatID string, file channels.File) error {
	return c.saveFile("document", file)
}

// SendVoice writes the voice note to the output directory.
func (c *Console) SendVoice(_ context.Context, chatID string, file channels.File) error {
	return c.saveFile("voice", file)
}

// SendPhoto writes the photo to the output directory.
func (c *Console) SendPhoto(_ context.Context, chatID string, file channels.File) error {
	return c.saveFile("photo", file)
}

// SendMediaRef prints the reference; the console holds no remote media.
func (c *Console) SendMediaRef(_ context.Context, chatID string, ref channels.MediaRef) error {
	return c.printf("priya> [%s %s] %s\n", ref.Type, ref.FileID, ref.Caption)
}

// SendActivity prints nothing; the prompt returns when the reply is done.
func (c *Console) SendActivity(context.Context, string, channels.Activity) error {
	if !c.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	return nil
}

// Download returns a file previously written by this console.
func (c *Console) Download(_ context.Context, fileID string) ([]byte, error) {
	v, ok := c.files.Load(fileID)
	if !ok {
		return nil, channels.ErrMediaDownloadFailed
	}
	return os.ReadFile(v.(string))
}

func (c *Console) saveFile(kind string, file channels.File) error {
	if !c.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	name := file.Filename
	if name == "" {
		name = kind
	}
	id := c.seq.Add(1)
	path := filepath.Join(c.cfg.OutDir, fmt.Sprintf("%03d-%s", id, filepath.Base(name)))
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("console: writing %s: %w", kind, err)
	}
	c.files.Store(strconv.FormatInt(id, 10), path)

	if file.Caption != "" {
		return c.printf("priya> [%s saved to %s] %s\n", kind, path, file.Caption)
	}
	return c.printf("priya> [%s saved to %s]\n", kind, path)
}

var _ channels.Channel = (*Console)(nil)
