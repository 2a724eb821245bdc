// Package cmd wires the crawl pipeline behind a small CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nolcrawler/config"
	"nolcrawler/internal/catalog"
	"nolcrawler/internal/nol"
	"nolcrawler/logger"
	"nolcrawler/services/cache"
	"nolcrawler/services/publisher"
	"nolcrawler/services/worker"
)

var (
	flagSemester string
	flagStart    int
	flagPretty   bool
)

var rootCmd = &cobra.Command{
	Use:           "nolcrawler",
	Short:         "Crawl the NTU Online course catalog",
	Long:          "Crawls the NTU Online course search page by page and streams every course record to stdout or a Redis stream.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCrawl,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSemester, "semester", "", "semester identifier, e.g. 104-1 (default: the service's preselected semester)")
	rootCmd.Flags().IntVar(&flagStart, "start", 0, "global index to resume crawling from")
	rootCmd.Flags().BoolVar(&flagPretty, "pretty", false, "indent the JSON output")

	rootCmd.AddCommand(semestersCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(courseCmd)
}

// loadConfig reads the environment configuration and applies flag
// overrides of the invoking command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.LoadConfig()
	if cmd.Flags().Changed("semester") {
		cfg.Semester = flagSemester
	}
	if cmd.Flags().Changed("start") {
		cfg.StartIndex = flagStart
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Pretty = flagPretty
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext cancels on interrupt or termination
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// buildClient assembles the transport, attaching the shared rate-limit
// guard when memcache is configured.
func buildClient(cfg *config.Config, semester string) *nol.Client {
	var guard cache.CacheService
	if cfg.MemcacheAddr != "" {
		guard = cache.NewMemcacheService(cfg.MemcacheAddr)
	}
	return nol.NewClient(semester, nol.Options{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTPTimeout,
		Guard:     guard,
		BlockTime: cfg.RateLimitBlock,
	})
}

// resolveSemester returns the configured semester, falling back to the
// service's preselected one.
func resolveSemester(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Semester != "" {
		return cfg.Semester, nil
	}
	semester, err := buildClient(cfg, "").DefaultSemester(ctx)
	if err != nil {
		return "", err
	}
	logger.Info("Using default semester %s", semester)
	return semester, nil
}

func buildPublisher(ctx context.Context, cfg *config.Config) publisher.Publisher {
	if cfg.Publisher == config.PublisherRedis {
		return publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
	}
	return publisher.NewStdoutPublisher(cfg.Pretty)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	semester, err := resolveSemester(ctx, cfg)
	if err != nil {
		return err
	}

	client := buildClient(cfg, semester)
	count, err := client.CourseCount(ctx, semester)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no such semester %s", semester)
	}

	crawler, err := catalog.NewCrawler(semester, client, client, cfg.CacheSize)
	if err != nil {
		return err
	}

	pub := buildPublisher(ctx, cfg)
	defer pub.Close()

	logger.Default.Info().
		Str("semester", client.Semester()).
		Int("count", count).
		Int("start", cfg.StartIndex).
		Str("publisher", cfg.Publisher).
		Msg("Starting crawl")

	w := worker.NewWorker(crawler, pub, cfg.StartIndex, count, cfg.MaxRetries, cfg.RetryDelay)
	return w.Run(ctx)
}
