package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/LJTian/MediaMon/internal/aggregator"
	"github.com/LJTian/MediaMon/internal/collector"
	"github.com/LJTian/MediaMon/internal/config"
	"github.com/LJTian/MediaMon/internal/domain"
	"github.com/LJTian/MediaMon/internal/processor"
	"github.com/LJTian/MediaMon/internal/sentiment"
	"github.com/LJTian/MediaMon/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagQuery string
	flagLimit int
)

// 仅执行一轮聚合的命令行入口：适合手动触发采集或排查某个来源
var rootCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one aggregation pass and print the results",
	RunE:  runCollect,
}

func init() {
	rootCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "search query; empty refreshes the default feed set")
	rootCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "number of articles to print")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()

	var docs storage.DocumentStore = storage.NewMemoryStore()
	if cfg.PostgresDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		docs = pg
	}

	normalizer := processor.NewNormalizer(sentiment.NewScorer(nil))
	normalizer.ContentHashIDs = cfg.ContentHashIDs

	fetchers := []collector.Fetcher{
		collector.NewFeedFetcher(cfg.Feeds),
		collector.NewTwitterFetcher(cfg.Twitter, cfg.TwitterDefaultQuery),
		collector.NewPageFetcher(cfg.FacebookEmail, cfg.FacebookPassword, cfg.FacebookPages),
		collector.NewPhotoFetcher(cfg.InstagramUsername, cfg.InstagramPassword, cfg.InstagramAccounts),
	}
	agg := aggregator.New(fetchers, normalizer, storage.NewArticleStore(docs))
	agg.Timeout = cfg.FetchTimeout
	agg.Workers = cfg.FetchWorkers
	agg.Caps = aggregator.MergeCaps(cfg.Caps)

	pass := agg.Run(cmd.Context(), flagQuery)
	log.Printf("collected %d articles for query %q", len(pass.Articles), flagQuery)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSTATUS\tFETCHED\tKEPT\tELAPSED\tERROR")
	for _, r := range pass.Reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", r.Source, r.Status, r.Fetched, r.Kept, r.Elapsed.Round(time.Millisecond), r.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	printArticles(out, pass.Articles, flagLimit)
	return nil
}

func printArticles(out io.Writer, articles []domain.Article, limit int) {
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLISHED\tSOURCE\tLANG\tSENTIMENT\tTITLE")
	for _, a := range articles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%+.2f %s\t%s\n",
			a.Published.Format("2006-01-02 15:04"), a.Source, a.Language, a.SentimentScore, a.SentimentLabel, a.Title)
	}
	_ = w.Flush()
}
