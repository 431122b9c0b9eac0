package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/narumiruna/lazyopenai"
	"github.com/narumiruna/lazyopenai/config"
	"github.com/narumiruna/lazyopenai/internal/api"
	"github.com/narumiruna/lazyopenai/provider"
)

const askTimeout = 5 * time.Minute

var (
	cfg    *config.Settings
	logger zerolog.Logger

	configPath  string
	providerArg string
	modelArg    string
	instruction string
	noTools     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lazyai [prompt]",
		Short: "Chat with an LLM that can call local tools",
		Long: `lazyai sends prompts to OpenAI, Azure OpenAI or Anthropic and lets the
model call the built-in add_numbers and get_current_time tools.

Settings come from an optional YAML file, then the environment
(OPENAI_API_KEY, AZURE_OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENAI_MODEL, ...),
then keys stored with "lazyai config setup".

Examples:
  lazyai "100 + 10 = ?"
  lazyai ask --provider anthropic "What time is it?"
  lazyai chat --instruction "Answer in French."
  lazyai serve --addr :8080`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if providerArg != "" {
				cfg.Provider = config.Provider(strings.ToLower(providerArg))
			}
			if modelArg != "" {
				cfg.Model = modelArg
			}

			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(cfg.Level()).
				With().
				Timestamp().
				Logger()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runAsk(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML settings file")
	rootCmd.PersistentFlags().StringVar(&providerArg, "provider", "", "auto, openai, azure or anthropic")
	rootCmd.PersistentFlags().StringVarP(&modelArg, "model", "m", "", "model or Azure deployment name")
	rootCmd.PersistentFlags().StringVarP(&instruction, "instruction", "i", "", "system instruction")
	rootCmd.PersistentFlags().BoolVar(&noTools, "no-tools", false, "do not offer the built-in tools")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	var idleTTL time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, opts, err := setup()
			if err != nil {
				return err
			}
			server := api.NewServer(client, logger, opts...)
			server.SetIdleTTL(idleTTL)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	cmd.Flags().DurationVar(&idleTTL, "idle-ttl", api.DefaultIdleTTL, "drop conversations idle for this long (0 keeps them)")
	return cmd
}

// setup builds the completer and the options every conversation shares.
func setup() (lazyopenai.Completer, []lazyopenai.Option, error) {
	client, err := provider.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := append(cfg.AgentOptions(), lazyopenai.WithLogger(logger))
	if instruction != "" {
		opts = append(opts, lazyopenai.WithInstruction(instruction))
	}
	if !noTools {
		tools, err := builtinTools()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts,
			lazyopenai.WithTools(tools...),
			lazyopenai.WithMiddleware(lazyopenai.WithLogging(logger)),
		)
	}
	logger.Debug().
		Str("provider", string(cfg.ResolvedProvider())).
		Str("model", cfg.ResolvedModel()).
		Msg("configured")
	return client, opts, nil
}

func runAsk(ctx context.Context, out io.Writer, prompt string) error {
	client, opts, err := setup()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	text, err := lazyopenai.Send(ctx, client, prompt, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	return nil
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	client, opts, err := setup()
	if err != nil {
		return err
	}
	ag, err := lazyopenai.NewAgent(client, opts...)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "lazyai chat (%s, %s)\n", cfg.ResolvedProvider(), cfg.ResolvedModel())
	fmt.Fprintln(out, "Type 'exit' or 'quit' to end the session, 'clear' to start over.")
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "You: ")
		input, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) == "" {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "clear":
			if ag, err = lazyopenai.NewAgent(client, opts...); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		text, err := ag.Ask(ctx, input)
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(out, "Assistant: %s\n\n", text)
	}
}
