package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"digestbot/internal/admit"
	"digestbot/internal/bot"
	"digestbot/internal/config"
	"digestbot/internal/database"
	"digestbot/internal/deliver"
	"digestbot/internal/discover"
	"digestbot/internal/runner"
	"digestbot/internal/server"
	"digestbot/internal/summarize"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "digestbot",
	Short:   "Multilingual news digests over Telegram",
	Long:    "digestbot discovers news URLs, summarizes them, translates the summaries into each subscriber language and delivers the results over Telegram.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(languagesCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("digestbot", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/digestbot/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources and API key environment variables.")
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon: discovery, summarization, delivery, command bot and status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		botToken := os.Getenv(cfg.Telegram.TokenEnv)
		if botToken == "" {
			return fmt.Errorf("bot token env %s is empty", cfg.Telegram.TokenEnv)
		}
		openaiKey := os.Getenv(cfg.Summarizer.APIKeyEnv)
		if openaiKey == "" {
			return fmt.Errorf("summarizer key env %s is empty", cfg.Summarizer.APIKeyEnv)
		}
		deeplKey := os.Getenv(cfg.Translator.APIKeyEnv)
		if deeplKey == "" {
			return fmt.Errorf("translator key env %s is empty", cfg.Translator.APIKeyEnv)
		}

		api, err := tgbotapi.NewBotAPI(botToken)
		if err != nil {
			return fmt.Errorf("authorizing bot: %w", err)
		}

		discoverer := newDiscoverer(db)
		scanner := summarize.NewScanner(cfg, db,
			summarize.NewOpenAI(openaiKey, cfg.Summarizer.Model, cfg.Summarizer.BaseURL),
			summarize.NewDeepL(cfg.Translator.BaseURL, deeplKey),
		)
		loop := deliver.NewLoop(cfg, db, deliver.NewTelegramMessenger(api))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Telegram.AdminChatID != 0 {
			if _, err := api.Send(tgbotapi.NewMessage(cfg.Telegram.AdminChatID, "digestbot started")); err != nil {
				log.Printf("Error notifying admin chat: %v", err)
			}
		}

		go bot.New(api, db).Run(ctx)
		go func() {
			if err := server.Serve(db, cfg.Server.Port); err != nil {
				log.Printf("Status server stopped: %v", err)
			}
		}()

		return runner.New(cfg, discoverer, scanner, loop).Run(ctx)
	},
}

// --- discover command ---

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery and admission pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := newDiscoverer(db).Run()

		fmt.Println("\nDiscovery complete:")
		fmt.Printf("  URLs listed: %d\n", result.Listed)
		fmt.Printf("  New: %d\n", result.New)
		fmt.Printf("  Admitted fresh: %d\n", result.Fresh)
		fmt.Printf("  Recorded stale: %d\n", result.Stale)
		fmt.Printf("  Sources skipped: %d\n", result.Skipped)
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.Articles)
		fmt.Printf("  Awaiting summary: %d\n", stats.PendingArticles)
		fmt.Println("\nSummaries:")
		fmt.Printf("  Total: %d\n", stats.Summaries)
		fmt.Printf("  Languages known: %d\n", stats.Languages)
		fmt.Println("\nSubscribers:")
		fmt.Printf("  Active: %d of %d\n", stats.ActiveSubscribers, stats.Subscribers)
		fmt.Println("\nDeliveries:")
		fmt.Printf("  Total: %d\n", stats.Deliveries)
		fmt.Printf("  Pending: %d\n", stats.PendingDeliveries)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status web server only",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- languages command ---

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "Manage translation languages",
}

var languagesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the translation provider's target languages into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		deeplKey := os.Getenv(cfg.Translator.APIKeyEnv)
		if deeplKey == "" {
			return fmt.Errorf("translator key env %s is empty", cfg.Translator.APIKeyEnv)
		}

		client := summarize.NewDeepL(cfg.Translator.BaseURL, deeplKey)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		provided, err := client.TargetLanguages(ctx)
		if err != nil {
			return fmt.Errorf("fetching target languages: %w", err)
		}

		langs := make([]database.Language, 0, len(provided))
		for _, p := range provided {
			name := p.Name
			langs = append(langs, database.Language{Code: p.Code, Name: &name})
		}
		added, err := db.SeedLanguages(langs)
		if err != nil {
			return fmt.Errorf("seeding languages: %w", err)
		}
		fmt.Printf("Seeded %d new languages (%d provided)\n", added, len(provided))
		return nil
	},
}

var languagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		langs, err := db.ActiveLanguages()
		if err != nil {
			return err
		}
		if len(langs) == 0 {
			fmt.Println("No active languages. Run 'digestbot languages seed' first.")
			return nil
		}
		for _, l := range langs {
			name := ""
			if l.Name != nil {
				name = *l.Name
			}
			fmt.Printf("  %-8s %s\n", l.Code, name)
		}
		return nil
	},
}

func init() {
	languagesCmd.AddCommand(languagesSeedCmd)
	languagesCmd.AddCommand(languagesListCmd)
}

func newDiscoverer(db *database.DB) *discover.Discoverer {
	timeout := time.Duration(cfg.Discovery.FetchTimeoutSeconds) * time.Second
	fetcher := discover.NewFetcher(timeout, cfg.GetDataDir())
	filter := admit.New(db, cfg.MaxArticleAge(), timeout)
	return discover.New(cfg, db, fetcher, filter)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "digestbot.db")
	return database.Open(dbPath)
}
