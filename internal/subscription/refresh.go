package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/esched/internal/clash"
	"github.com/MrSnakeDoc/esched/internal/classify"
	"github.com/MrSnakeDoc/esched/internal/logger"
)

// ConfigCache receives the merged artifact.
type ConfigCache interface {
	SetClashConfig(ctx context.Context, data []byte) error
}

// Options names the files a refresh reads and writes.
type Options struct {
	TemplateFile string   // base template, read on every run and never written
	OutputFile   string   // optional copy of the merged artifact on disk
	Anchors      []Anchor // nil means DefaultAnchors
}

// Refresher runs one subscription refresh cycle.
type Refresher struct {
	fetcher    *Fetcher
	classifier *classify.Classifier
	cache      ConfigCache
	opts       Options
	logger     logger.Logger
}

// NewRefresher creates a subscription Refresher.
func NewRefresher(fetcher *Fetcher, classifier *classify.Classifier, cache ConfigCache, opts Options, log logger.Logger) *Refresher {
	if opts.Anchors == nil {
		opts.Anchors = DefaultAnchors
	}
	return &Refresher{
		fetcher:    fetcher,
		classifier: classifier,
		cache:      cache,
		opts:       opts,
		logger:     log,
	}
}

// Refresh fetches, classifies, merges and persists. Nothing is persisted
// unless every step before it succeeded, so a failed run leaves the previous
// artifact in place.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.logger.Info("start refreshing the subscription of clash")
	start := time.Now()

	proxies, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}

	buckets := Classify(proxies, r.classifier, r.logger)

	cfg, err := clash.LoadFile(r.opts.TemplateFile)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if err := Merge(cfg, proxies, buckets, r.opts.Anchors); err != nil {
		return err
	}

	data, err := clash.Encode(cfg)
	if err != nil {
		return err
	}
	if err := r.cache.SetClashConfig(ctx, data); err != nil {
		return fmt.Errorf("failed to cache clash config: %w", err)
	}
	if r.opts.OutputFile != "" {
		if err := clash.WriteFile(r.opts.OutputFile, data); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	}

	r.logger.Info("refresh clash subscription successful",
		logger.Int("proxies", len(proxies)),
		logger.Int("classified", len(buckets.Names(BucketAll))),
		logger.Int("unrecognized", len(buckets.Unrecognized())),
		logger.Duration("took", time.Since(start)))
	return nil
}
