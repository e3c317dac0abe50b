package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	dombatch "github.com/kailas-cloud/songrec/internal/domain/batch"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
	"github.com/kailas-cloud/songrec/internal/usecase/ingest"
)

// defaultSeedQueries are popular artists used to pre-load the catalog.
var defaultSeedQueries = []string{
	"Imagine Dragons", "Ed Sheeran", "The Weeknd", "Taylor Swift", "Ariana Grande",
	"Billie Eilish", "Post Malone", "Drake", "Justin Bieber", "Dua Lipa",
	"Coldplay", "Maroon 5", "Bruno Mars", "Sia", "Eminem",
	"Adele", "Sam Smith", "Shawn Mendes", "Charlie Puth", "OneRepublic",
}

const seedRequestsPerSecond = 2

func newSeedCommand(env *string) *cobra.Command {
	var (
		queries  []string
		perQuery int
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Pre-load popular songs with embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, *env)
			if err != nil {
				return err
			}
			defer rt.Close()

			songs := rt.songRepo()
			provider, err := rt.embeddingProvider(ctx)
			if err != nil {
				return err
			}
			upstream := rt.upstream(time.Duration(rt.cfg.Upstream.SeedTimeoutSec) * time.Second)
			ingestSvc := ingest.New(songs, provider, rt.logger).
				WithItemTimeout(time.Duration(rt.cfg.Ingest.ItemTimeoutSec) * time.Second)

			s := &seeder{
				search:  upstream,
				ingest:  ingestSvc,
				count:   songs,
				limiter: rate.NewLimiter(rate.Limit(seedRequestsPerSecond), 1),
				out:     cmd.OutOrStdout(),
				in:      cmd.InOrStdin(),
				logger:  rt.logger,
			}
			_, err = s.Run(ctx, queries, perQuery, yes)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&queries, "queries", defaultSeedQueries, "Search queries to seed from")
	cmd.Flags().IntVar(&perQuery, "per-query", 10, "Songs to fetch per query")
	cmd.Flags().BoolVar(&yes, "yes", false, "Do not ask for confirmation when songs already exist")
	return cmd
}

type seedSearcher interface {
	Search(ctx context.Context, query string, page, limit int) (domsong.SearchPage, error)
}

type seedIngester interface {
	IngestBatch(ctx context.Context, raws []json.RawMessage) dombatch.Summary
}

type seedCounter interface {
	CountAll(ctx context.Context) (int, error)
}

// seeder fetches songs per query from the upstream and ingests them synchronously.
type seeder struct {
	search  seedSearcher
	ingest  seedIngester
	count   seedCounter
	limiter *rate.Limiter
	out     io.Writer
	in      io.Reader
	logger  *zap.Logger
}

// Run seeds every query and returns the combined summary. A failed upstream query is
// reported and skipped. Run returns early with an empty summary when the user declines.
func (s *seeder) Run(ctx context.Context, queries []string, perQuery int, yes bool) (dombatch.Summary, error) {
	var total dombatch.Summary
	if perQuery < 1 {
		return total, fmt.Errorf("--per-query must be at least 1, got %d", perQuery)
	}

	existing, err := s.count.CountAll(ctx)
	if err != nil {
		return total, fmt.Errorf("count songs: %w", err)
	}
	if existing > 0 && !yes {
		fmt.Fprintf(s.out, "Database already has %d songs. Continue adding more songs? (y/n): ", existing)
		if !confirmed(s.in) {
			fmt.Fprintln(s.out, "Seeding cancelled.")
			return total, nil
		}
	}

	fmt.Fprintf(s.out, "Seeding up to %d songs from %d queries\n", len(queries)*perQuery, len(queries))
	for _, q := range queries {
		if err := s.limiter.Wait(ctx); err != nil {
			return total, err
		}

		page, err := s.search.Search(ctx, q, 0, perQuery)
		if err != nil {
			s.logger.Warn("Seed query failed", zap.String("query", q), zap.Error(err))
			fmt.Fprintf(s.out, "  %-20s error: %v\n", q, err)
			continue
		}

		sum := s.ingest.IngestBatch(ctx, page.Results)
		total.Merge(sum)
		fmt.Fprintf(s.out, "  %-20s fetched=%d inserted=%d skipped=%d invalid=%d failed=%d\n",
			q, len(page.Results), sum.Inserted, sum.Skipped, sum.Invalid, sum.Failed)
	}

	fmt.Fprintf(s.out, "Done: inserted=%d skipped=%d invalid=%d failed=%d\n",
		total.Inserted, total.Skipped, total.Invalid, total.Failed)
	return total, nil
}

func confirmed(in io.Reader) bool {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
