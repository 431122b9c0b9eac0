package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/narumiruna/lazyopenai/internal/credentials"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage API keys stored in the OS keychain",
		Long: `Manage API keys stored securely in your OS keychain.

Examples:
  lazyai config setup          # Interactive setup
  lazyai config show           # Show stored keys and effective settings
  lazyai config clear          # Remove all stored keys`,
		// Keys are managed without loading settings first.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}

	cmd.AddCommand(configSetupCmd())
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configClearCmd())
	return cmd
}

func configSetupCmd() *cobra.Command {
	var openaiKey, azureKey, anthropicKey string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			prompt := func(label string, dst *string) {
				if *dst != "" {
					return
				}
				fmt.Fprintf(out, "%s (press Enter to skip): ", label)
				v, _ := readPassword(cmd.InOrStdin())
				*dst = strings.TrimSpace(v)
			}
			prompt("OpenAI API Key", &openaiKey)
			prompt("Azure OpenAI API Key", &azureKey)
			prompt("Anthropic API Key", &anthropicKey)

			if err := credentials.Setup(map[credentials.KeyType]string{
				credentials.KeyOpenAI:    openaiKey,
				credentials.KeyAzure:     azureKey,
				credentials.KeyAnthropic: anthropicKey,
			}); err != nil {
				return fmt.Errorf("failed to store credentials: %w", err)
			}

			fmt.Fprintln(out, "\nKeys stored securely in OS keychain.")
			return nil
		},
	}

	cmd.Flags().StringVar(&openaiKey, "openai-key", "", "OpenAI API key")
	cmd.Flags().StringVar(&azureKey, "azure-key", "", "Azure OpenAI API key")
	cmd.Flags().StringVar(&anthropicKey, "anthropic-key", "", "Anthropic API key")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configured := credentials.ListConfigured()

			status := func(ok bool) string {
				if ok {
					return "configured"
				}
				return "not set"
			}

			fmt.Fprintln(out, "Key Status (stored in OS keychain):")
			fmt.Fprintf(out, "  OpenAI API Key:       %s\n", status(configured[credentials.KeyOpenAI]))
			fmt.Fprintf(out, "  Azure OpenAI API Key: %s\n", status(configured[credentials.KeyAzure]))
			fmt.Fprintf(out, "  Anthropic API Key:    %s\n", status(configured[credentials.KeyAnthropic]))
			fmt.Fprintln(out, "\nNote: Environment variables override keychain values.")
			return nil
		},
	}
}

func configClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all stored keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !yes {
				fmt.Fprint(out, "Are you sure you want to clear all stored keys? [y/N]: ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
			}

			if err := credentials.ClearAll(); err != nil {
				fmt.Fprintf(out, "Warning: some keys may not have been cleared: %v\n", err)
			}
			fmt.Fprintln(out, "All keys cleared from keychain.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// readPassword reads a line without echo when in is a terminal.
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Println()
		return string(b), err
	}
	return bufio.NewReader(in).ReadString('\n')
}
