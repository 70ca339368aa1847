// Command exchange-rate-client queries the tools server and, in ask mode,
// hands the rates to a local Ollama model.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"exchange-rate-mcp/internal/client"
	"exchange-rate-mcp/internal/config"
	"exchange-rate-mcp/internal/generate"
	"exchange-rate-mcp/internal/logger"
)

var defaultSymbols = []string{"EUR", "GBP", "JPY", "CAD", "AUD"}

type options struct {
	configPath string
	base       string
	symbols    []string
	askBase    string
	askSymbols []string
	model      string
	out        string
	question   string
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "exchange-rate-client",
		Short:         "Client for the exchange rate tools server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultEnvFile, "path to .env file")

	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "Fetch exchange rates and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := setup(opts)
			if err != nil {
				return err
			}
			log.Info("fetching current exchange rates", "server", cfg.Client.ServerURL)
			res, err := c.GetExchangeRates(cmd.Context(), opts.base, opts.symbols)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nbase: %s, date: %s\n%s\n", res.Content.Base, res.Content.Date, client.FormatRates(res.Content.Rates))
			return nil
		},
	}
	ratesCmd.Flags().StringVar(&opts.base, "base", "USD", "base currency")
	ratesCmd.Flags().StringSliceVar(&opts.symbols, "symbols", nil, "comma separated currency codes")

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := setup(opts)
			if err != nil {
				return err
			}
			list, err := c.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask an Ollama model about the current exchange rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ask(cmd, opts)
		},
	}
	askCmd.Flags().StringVar(&opts.askBase, "base", "USD", "base currency")
	askCmd.Flags().StringSliceVar(&opts.askSymbols, "symbols", defaultSymbols, "comma separated currency codes")
	askCmd.Flags().StringVar(&opts.model, "model", "", "Ollama model (defaults to OLLAMA_MODEL)")
	askCmd.Flags().StringVar(&opts.out, "out", "", "conversation file (defaults to CONVERSATION_FILE)")
	askCmd.Flags().StringVar(&opts.question, "question", "", "question appended to the rate table")

	rootCmd.AddCommand(ratesCmd, toolsCmd, askCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("client failed", "err", err)
		os.Exit(1)
	}
}

func setup(opts *options) (config.Config, *client.Client, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	lg := logger.New(cfg.Log)
	log.SetDefault(lg)

	c := client.New(cfg.Client.ServerURL, nil)
	c.Token = cfg.Token
	c.Logger = logger.ForComponent(lg, "client")
	return cfg, c, nil
}

func ask(cmd *cobra.Command, opts *options) error {
	cfg, c, err := setup(opts)
	if err != nil {
		return err
	}
	model := firstNonEmpty(opts.model, cfg.Client.Model)
	out := firstNonEmpty(opts.out, cfg.Client.ConversationFile)

	log.Info("fetching current exchange rates", "server", cfg.Client.ServerURL)
	res, err := c.GetExchangeRates(cmd.Context(), opts.askBase, opts.askSymbols)
	if err != nil {
		return err
	}
	prompt := client.BuildPrompt(res.Content, opts.question)

	gen := generate.New(cfg.Client.OllamaURL, nil)
	gen.Logger = logger.ForComponent(log.Default(), "ollama")
	log.Info("sending prompt to ollama", "model", model)
	response, err := gen.Generate(cmd.Context(), model, prompt, nil)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n--- %s Response ---\n\n%s\n", model, response)

	if err := client.SaveConversation(out, prompt, response); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	log.Info("conversation saved", "file", out)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
