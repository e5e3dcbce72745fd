package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/priyabot/priya/pkg/priya/channels/console"
	"github.com/priyabot/priya/pkg/priya/memory"
)

// newChatCmd creates the `priya chat` command that runs the pipeline in the
// terminal.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to priya in the terminal",
		Long: `Run the same pipeline as serve over a local console. Commands such
as /voice and /image work as on Telegram; documents, voice notes and
photos are written to the output directory. Type /quit or press Ctrl-D to
leave.

Examples:
  priya chat
  priya chat --memory
  priya chat --admin --out ./replies`,
		RunE: runChat,
	}

	cmd.Flags().Bool("memory", false, "keep the conversation in memory instead of the SQLite store")
	cmd.Flags().String("out", "./out", "directory for documents, voice notes and photos")
	cmd.Flags().Bool("admin", false, "treat the console user as an admin")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Logs go to stderr so they do not interleave with replies.
	logger := newLogger(cmd, cfg.Logging, os.Stderr)

	useMemory, _ := cmd.Flags().GetBool("memory")
	outDir, _ := cmd.Flags().GetString("out")
	admin, _ := cmd.Flags().GetBool("admin")

	var store memory.Store
	if useMemory {
		store = memory.NewMemStore(cfg.Memory.HistoryLimit)
	} else {
		sqlite, err := memory.OpenSQLite(cfg.Memory, logger)
		if err != nil {
			return err
		}
		store = sqlite
	}
	defer store.Close()

	if admin {
		cfg.Bot.Admins = append(cfg.Bot.Admins, console.UserID)
	}

	var history string
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".priya_history")
	}
	ch := console.New(console.Config{HistoryFile: history, OutDir: outDir}, logger)

	b, err := newPipeline(cfg, ch, store, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "priya chat - /start to begin, /quit to leave")
	return b.Run(ctx)
}
