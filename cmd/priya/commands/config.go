package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyabot/priya/pkg/priya/config"
)

// newConfigCmd creates the `priya config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the priya configuration",
		Long: `Inspect and edit the priya configuration.

Examples:
  priya config init
  priya config show
  priya config set-key openrouter`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
	)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			if path == "" {
				path = "config.yaml"
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set secrets with 'priya config set-key <name>' or the BOT_TOKEN / OPENROUTER_API_n variables.")
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out, err := config.Show(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-key <name>",
		Short: "Store a secret in the OS keyring",
		Long: fmt.Sprintf(`Read a secret from the terminal without echo and store it in the OS
keyring under the service %q. Pool secrets (every name except
bot_token) may hold several keys separated by commas.

Names: %s`, config.KeyringService, strings.Join(config.SecretNames(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if del, _ := cmd.Flags().GetBool("delete"); del {
				if err := config.DeleteSecret(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the keyring\n", name)
				return nil
			}

			value, err := config.ReadSecret(fmt.Sprintf("%s: ", name))
			if err != nil {
				return err
			}
			if value == "" {
				return errors.New("empty value, nothing stored")
			}
			if err := config.StoreSecret(name, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in the keyring\n", name)
			return nil
		},
	}
	cmd.Flags().Bool("delete", false, "remove the secret instead of setting it")
	return cmd
}
