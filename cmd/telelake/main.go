package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kara-analytics/telelake/internal/config"
	"github.com/kara-analytics/telelake/internal/enrich"
	"github.com/kara-analytics/telelake/internal/lake"
	"github.com/kara-analytics/telelake/internal/loader"
	"github.com/kara-analytics/telelake/internal/pipeline"
	"github.com/kara-analytics/telelake/internal/rawstore"
	"github.com/kara-analytics/telelake/internal/scrape"
	"github.com/kara-analytics/telelake/internal/server"
	"github.com/kara-analytics/telelake/internal/slugify"
	"github.com/kara-analytics/telelake/internal/telegram"
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
	Use:     "telelake",
	Short:   "Telegram channel analytics ingestion",
	Long:    "Telelake scrapes public Telegram channels into a date-partitioned data lake and loads the partitions into a queryable raw store.",
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
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("telelake", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/telelake/",
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
		fmt.Println("Edit it to configure channels, the data directory, and the transform command.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show raw store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Raw store: %s\n\n", store.Path())
		fmt.Println("Messages:")
		fmt.Printf("  Total: %d\n", stats.TotalMessages)
		fmt.Printf("  Channels: %d\n", stats.Channels)
		fmt.Printf("  Dates with data: %d\n", stats.DatesWithData)
		fmt.Println("\nEnrichment:")
		fmt.Printf("  Image detections: %d\n", stats.TotalDetections)
		return nil
	},
}

// --- scrape command ---

var (
	scrapeChannel string
	scrapeAll     bool
	scrapeDate    string
	scrapeLimit   int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape channel history into date-partitioned JSON files",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := scrape.NewSelection(scrapeChannel, scrapeAll)
		if err != nil {
			return err
		}
		date, err := resolveDate(scrapeDate)
		if err != nil {
			return err
		}

		channels := cfg.Channels
		if !sel.All() {
			channels = []string{sel.Channel()}
		}
		limit := cfg.Scrape.Limit
		if cmd.Flags().Changed("limit") {
			limit = scrapeLimit
		}

		client := telegram.NewClient(cfg.Scrape.BaseURL, time.Duration(cfg.Scrape.TimeoutSeconds)*time.Second)
		collector := scrape.NewCollector(client, cfg.Scrape.PageSize, cfg.GetDataDir(), limit)
		result := collector.Run(cmd.Context(), date, channels)

		fmt.Println("\nScrape complete:")
		fmt.Printf("  Partition files written: %d\n", result.Channels)
		fmt.Printf("  Messages: %d\n", result.Messages)
		fmt.Printf("  Channels skipped: %d\n", result.Skipped)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeChannel, "channel", "", "Single channel username or t.me link")
	scrapeCmd.Flags().BoolVar(&scrapeAll, "all", false, "Scrape all configured channels")
	scrapeCmd.Flags().StringVar(&scrapeDate, "date", "", "Partition date YYYY-MM-DD (default: today UTC)")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "Maximum messages per channel (0 = full history)")
}

// --- load command ---

var (
	loadDate string
	loadPath string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load partition files into the raw store",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := loader.NewTarget(loadDate, loadPath)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := loader.New(store).Load(cmd.Context(), target.Root(cfg.GetDataDir()))
		if err != nil {
			return err
		}

		fmt.Println("\nLoad complete:")
		fmt.Printf("  Files: %d (%d failed)\n", result.Files, result.FilesFailed)
		fmt.Printf("  Inserted: %d\n", result.Inserted)
		fmt.Printf("  Already present: %d\n", result.Duplicates)
		fmt.Printf("  Bad records: %d\n", result.BadRecords)
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadDate, "date", "", "Partition date YYYY-MM-DD to load")
	loadCmd.Flags().StringVar(&loadPath, "path", "", "Explicit partition directory to load")
}

// --- enrich command ---

var (
	enrichChannel string
	enrichAll     bool
	enrichDate    string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run object detection over channel images",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := scrape.NewSelection(enrichChannel, enrichAll)
		if err != nil {
			return err
		}
		date, err := resolveDate(enrichDate)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var slugs []string
		if sel.All() {
			slugs, err = store.ChannelSlugsForDate(cmd.Context(), date)
			if err != nil {
				return err
			}
		} else {
			slugs = []string{slugify.Channel(sel.Channel())}
		}

		detector := enrich.NewCommandDetector(cfg.Enrich.DetectorCommand)
		result, err := enrich.New(store, detector, cfg.GetDataDir()).Run(cmd.Context(), date, slugs)
		if err != nil {
			return err
		}

		fmt.Println("\nEnrichment complete:")
		fmt.Printf("  Channels: %d\n", result.Channels)
		fmt.Printf("  Images: %d (%d failed)\n", result.Images, result.Failed)
		fmt.Printf("  Detections stored: %d\n", result.Detections)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichChannel, "channel", "", "Single channel slug")
	enrichCmd.Flags().BoolVar(&enrichAll, "all", false, "All channels with data for the date")
	enrichCmd.Flags().StringVar(&enrichDate, "date", "", "Date YYYY-MM-DD (default: today UTC)")
}

// --- run command ---

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scrape -> load -> transform -> enrich",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := resolveDate(runDate)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		result := pipeline.New(cfg, store).Run(cmd.Context(), date)

		var failed bool
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/4: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
				failed = true
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if failed {
			return fmt.Errorf("pipeline finished with errors")
		}
		fmt.Println("\nPipeline complete.")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "Date YYYY-MM-DD to process (default: today UTC)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		fmt.Printf("Starting API at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(store, port, server.Options{
			QueryRetries: cfg.Server.QueryRetries,
			CacheSize:    cfg.Server.CacheSize,
			CacheTTL:     time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run the API on")
}

// resolveDate validates an explicit date or falls back to today in UTC.
func resolveDate(date string) (string, error) {
	if date == "" {
		return time.Now().UTC().Format(lake.DateFormat), nil
	}
	if _, err := time.Parse(lake.DateFormat, date); err != nil {
		return "", fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}
	return date, nil
}

func openStore() (*rawstore.Store, error) {
	return rawstore.Open(cfg.GetDatabasePath(), cfg.Database.MaxOpenConns)
}
