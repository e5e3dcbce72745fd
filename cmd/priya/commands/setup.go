package commands

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/priyabot/priya/pkg/priya/config"
)

// newSetupCmd creates the `priya setup` wizard.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Ask for the bot token, the admin ids and the first completion key,
then write the configuration file. Secrets go to the OS keyring when it is
available, otherwise into the file with owner-only permissions.`,
		RunE: runSetup,
	}
}

// setupAnswers holds the wizard input.
type setupAnswers struct {
	Token      string
	Admins     string
	LLMKey     string
	UseKeyring bool
}

func runSetup(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = "config.yaml"
	}

	cfg := config.Default()
	if data, err := os.ReadFile(path); err == nil {
		if cfg, err = config.Parse(data); err != nil {
			return err
		}
	}

	answers := setupAnswers{
		Admins:     strings.Join(cfg.Bot.Admins, ","),
		UseKeyring: true,
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("From @BotFather, looks like 123456:ABC-DEF...").
				EchoMode(huh.EchoModePassword).
				Value(&answers.Token).
				Validate(validateToken),
			huh.NewInput().
				Title("Admin user ids").
				Description("Comma separated Telegram user ids allowed to run admin commands.").
				Value(&answers.Admins).
				Validate(validateAdmins),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenRouter API key").
				Description("More keys can be added later with OPENROUTER_API_n or 'priya config set-key openrouter'.").
				EchoMode(huh.EchoModePassword).
				Value(&answers.LLMKey),
			huh.NewConfirm().
				Title("Store secrets in the OS keyring?").
				Affirmative("Yes").
				Negative("No, write them to the file").
				Value(&answers.UseKeyring),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	applySetup(cfg, answers, cmd)
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s. Start the bot with 'priya serve'.\n", path)
	return nil
}

// applySetup copies the answers into cfg. Secrets that could not be put in
// the keyring fall back to the file.
func applySetup(cfg *config.Config, a setupAnswers, cmd *cobra.Command) {
	cfg.Bot.Admins = splitAdmins(a.Admins)

	token := strings.TrimSpace(a.Token)
	key := strings.TrimSpace(a.LLMKey)

	if a.UseKeyring {
		if err := config.StoreSecret(config.SecretBotToken, token); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "[!] keyring unavailable (%v), writing the token to the file\n", err)
		} else {
			token = ""
		}
		if key != "" {
			if err := config.StoreSecret(config.SecretOpenRouter, key); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "[!] keyring unavailable (%v), writing the key to the file\n", err)
			} else {
				key = ""
			}
		}
	}

	if token != "" {
		cfg.Telegram.Token = token
	}
	if key != "" && !slices.Contains(cfg.LLM.Keys, key) {
		cfg.LLM.Keys = append(cfg.LLM.Keys, key)
	}
}

func validateToken(s string) error {
	s = strings.TrimSpace(s)
	id, secret, ok := strings.Cut(s, ":")
	if !ok || id == "" || secret == "" || strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return errors.New("expected <digits>:<secret>")
	}
	return nil
}

func validateAdmins(s string) error {
	for _, id := range splitAdmins(s) {
		if strings.IndexFunc(id, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return fmt.Errorf("%q is not a numeric user id", id)
		}
	}
	return nil
}

func splitAdmins(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
