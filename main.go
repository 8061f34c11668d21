package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"deep-search-wiser/internal/channel"
	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/security"
	"deep-search-wiser/internal/server"
	"deep-search-wiser/internal/tool"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "wiser",
	Short:         "Screen people and companies for negative news",
	Long:          "wiser searches the web for a subject, flags negative news by keyword and summarizes it in Turkish.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd)
	rootCmd.AddCommand(askCmd, chatCmd, serveCmd, historyCmd, hashPasswordsCmd, initConfigCmd, secretsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var askSubject string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Example: `  wiser ask --subject "ACME Holding"
  wiser ask "ACME Holding hakkında olumsuz haber var mı?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		app, err := NewApp(cfgFile)
		if err != nil {
			return err
		}
		if question == "" {
			if askSubject == "" {
				return fmt.Errorf("give a question or --subject")
			}
			question = demoQuery(tool.SearchToolName(app.cfg.Search.Backend), askSubject)
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		defer app.shutdown(context.Background())
		if err := app.initAgent(ctx); err != nil {
			return err
		}

		answer, err := app.agent.HandleDirectMessage(ctx, "", question)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "=== Nihai Yanıt (Final Answer) ===\n%s\n", server.FormatSummary(answer))
		return nil
	},
}

// demoQuery spells out the search → filter → summarize chain for subject.
func demoQuery(searchTool, subject string) string {
	return fmt.Sprintf("%s ile '%s' ile ilgili haberleri ara, %s ile olumsuz olanları ayıkla ve %s aracıyla özetini bana sun.",
		searchTool, subject, tool.NegativeFilterName, tool.SummarizeName)
}

var (
	chatVerbose  bool
	chatMarkdown bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive console (and Telegram, when configured)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := NewApp(cfgFile)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		defer app.shutdown(context.Background())
		if err := app.initAgent(ctx); err != nil {
			return err
		}

		console, err := channel.NewConsoleChannel(channel.ConsoleConfig{
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
			Markdown: chatMarkdown && term.IsTerminal(int(os.Stdout.Fd())),
			Verbose:  chatVerbose,
			Bus:      app.bus,
		})
		if err != nil {
			return err
		}
		app.chanMgr.Register(console)
		app.registerTelegram()
		if err := app.startChannels(ctx); err != nil {
			return err
		}

		select {
		case <-console.Done():
		case <-ctx.Done():
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP chat API (and Telegram, when configured)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := NewApp(cfgFile)
		if err != nil {
			return err
		}
		signer, err := security.NewCookieSigner(app.cfg.Cookie)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		defer app.shutdown(context.Background())
		if err := app.initAgent(ctx); err != nil {
			return err
		}

		app.registerTelegram()
		if err := app.startChannels(ctx); err != nil {
			return err
		}
		return server.New(app.cfg, signer, app.history, app.agent).ListenAndServe(ctx)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and prune the chat history",
}

var historyQuery string

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records with their index and title",
	RunE: withHistory(func(cmd *cobra.Command, store history.Store, _ []string) error {
		records, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		entries := history.Entries(records, historyQuery)
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No chat history.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", e.Index, e.Title)
		}
		return nil
	}),
}

var historyShowCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Print one record",
	Args:  cobra.ExactArgs(1),
	RunE: withHistory(func(cmd *cobra.Command, store history.Store, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		rec, err := store.Get(cmd.Context(), index)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Prompt: %s\n\n%s\n", rec.Prompt, server.FormatSummary(rec.Response))
		return nil
	}),
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(1),
	RunE: withHistory(func(cmd *cobra.Command, store history.Store, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		if err := store.Delete(cmd.Context(), index); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %d.\n", index)
		return nil
	}),
}

func withHistory(fn func(*cobra.Command, history.Store, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cfgFile)
		if err != nil {
			return err
		}
		defer app.shutdown(context.Background())
		store, err := app.openHistory()
		if err != nil {
			return err
		}
		return fn(cmd, store, args)
	}
}

var hashPasswordsCmd = &cobra.Command{
	Use:   "hash-passwords",
	Short: "Replace plaintext passwords in the config with bcrypt hashes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		loader := config.NewLoader(cfgFile)
		if !loader.Exists() {
			return fmt.Errorf("config file %s not found", loader.FilePath())
		}
		// File only: placeholders and env secrets must not be written back resolved.
		cfg, err := loader.LoadFile()
		if err != nil {
			return err
		}
		n, err := security.HashPasswords(&cfg.Credentials)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "All passwords are already hashed.")
			return nil
		}
		if err := loader.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Hashed %d password(s) in %s.\n", n, loader.FilePath())
		return nil
	},
}

var initUseKeyring bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write config.yaml from the current settings if it does not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		loader := config.NewLoader(cfgFile)
		if loader.Exists() {
			fmt.Fprintln(cmd.OutOrStdout(), "Config yaml already exists!")
			return nil
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		if initUseKeyring {
			ks, err := security.NewKeyStore("", os.Getenv(vaultPassphraseEnv))
			if err != nil {
				return err
			}
			if cfg, err = ks.SealSecrets(cfg); err != nil {
				return err
			}
		}
		if err := loader.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", loader.FilePath())
		return nil
	},
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage secrets referenced as [keyring] in the config",
	Long: "Secrets are kept in the OS keyring, or in an encrypted vault unlocked by " +
		vaultPassphraseEnv + ". Names: " + strings.Join(security.SecretNames(), ", "),
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a secret; the value is read from stdin when omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !lo.Contains(security.SecretNames(), name) {
			return fmt.Errorf("unknown secret %q (one of %s)", name, strings.Join(security.SecretNames(), ", "))
		}
		value := ""
		if len(args) == 2 {
			value = args[1]
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", name)
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			value = strings.TrimSpace(string(b))
		}
		if value == "" {
			return fmt.Errorf("empty value")
		}

		ks, err := security.NewKeyStore("", os.Getenv(vaultPassphraseEnv))
		if err != nil {
			return err
		}
		if err := ks.Set(name, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%s). Use %q in the config.\n", name, security.MaskKey(value), security.Placeholder)
		return nil
	},
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, err := security.NewKeyStore("", os.Getenv(vaultPassphraseEnv))
		if err != nil {
			return err
		}
		if err := ks.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSubject, "subject", "", "person or company to screen with the default instruction")
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "print every tool call and observation")
	chatCmd.Flags().BoolVar(&chatMarkdown, "markdown", true, "render answers as Markdown on a terminal")
	historyListCmd.Flags().StringVarP(&historyQuery, "query", "q", "", "only records whose prompt contains this text")
	initConfigCmd.Flags().BoolVar(&initUseKeyring, "keyring", false, "move secrets to the key store and write [keyring] placeholders")
}
