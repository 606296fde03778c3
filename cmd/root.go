package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equesjoao/rspy/internal/browser"
	"github.com/equesjoao/rspy/internal/cache"
	"github.com/equesjoao/rspy/internal/config"
	"github.com/equesjoao/rspy/internal/feed"
	"github.com/equesjoao/rspy/internal/logger"
	"github.com/equesjoao/rspy/internal/merge"
	"github.com/equesjoao/rspy/internal/picker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagNoCache bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rspy",
	Short: "Terminal RSS feed browser",
	Long: `rspy fetches your RSS/Atom feeds concurrently, keeps a rolling window of
recent articles in a local cache, and opens the one you pick in the browser.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "ignore cached articles for this run")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rspy %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(flagVerbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	if len(cfg.Feeds) == 0 {
		fmt.Println("No feeds configured.")
		return nil
	}

	now := time.Now()
	names := cfg.FeedNames()
	store := cache.NewStore(cfg.CacheFile(), log)

	var cached []cache.Article
	if !flagNoCache {
		cached = store.Read(now, cfg.Window(), names)
	}

	opts := feed.Options{
		Window:     cfg.Window(),
		Timeout:    cfg.Timeout(),
		Retries:    cfg.Retries(),
		MaxWorkers: cfg.Workers(),
		UserAgent:  "rspy/" + version,
	}
	fetcher := feed.NewRSSFetcher(opts, log)
	log.Info("fetching feeds", zap.Int("feeds", len(cfg.Feeds)), zap.Int("workers", opts.MaxWorkers))
	fresh := feed.FetchAll(cmd.Context(), cfg.Feeds, fetcher, opts, log)

	engine := merge.NewEngine(store, log)
	merged := engine.Run(now, fresh, cached, names)

	if len(merged) == 0 {
		fmt.Println("No articles found.")
		return nil
	}

	return selectLoop(merged, picker.Select, browser.Open, cmd.OutOrStdout())
}

// selectLoop offers the merged articles through the picker until the user
// declines. Lines are "<feed> | <title>", the same format the selection is
// matched back against.
func selectLoop(articles []cache.Article, pick func([]string) (string, error), open func(string) error, out io.Writer) error {
	lines := make([]string, len(articles))
	byLine := make(map[string]cache.Article, len(articles))
	for i, a := range articles {
		line := displayLine(a)
		lines[i] = line
		if _, ok := byLine[line]; !ok {
			byLine[line] = a
		}
	}

	for {
		choice, err := pick(lines)
		if errors.Is(err, picker.ErrNoSelection) {
			return nil
		}
		if err != nil {
			return err
		}

		a, ok := byLine[choice]
		if !ok {
			continue
		}
		if a.Link == "" || a.Link == cache.NoLink {
			fmt.Fprintln(out, "This article does not have a valid link.")
			continue
		}

		fmt.Fprintf(out, "Opening in browser: %s\n", a.Link)
		if err := open(a.Link); err != nil {
			fmt.Fprintf(out, "Could not open %s: %v\n", a.Link, err)
		}
	}
}

func displayLine(a cache.Article) string {
	return a.Feed + " | " + a.Title
}
