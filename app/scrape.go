package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"gator/domain"
	"gator/internal/logger"
	"gator/internal/metrics"
)

// Scraper runs one scrape cycle: claim the next feed, fetch it and persist new posts.
type Scraper struct {
	rotation domain.FeedRotation
	fetcher  domain.FeedFetcher
	posts    domain.PostStore

	fetchTimeout time.Duration
	now          func() time.Time
}

type ScraperOption func(*Scraper)

// WithFetchTimeout bounds each fetch; expiry is reported as ErrFetchFailed.
func WithFetchTimeout(d time.Duration) ScraperOption {
	return func(s *Scraper) { s.fetchTimeout = d }
}

func WithClock(now func() time.Time) ScraperOption {
	return func(s *Scraper) { s.now = now }
}

func NewScraper(rotation domain.FeedRotation, fetcher domain.FeedFetcher, posts domain.PostStore, opts ...ScraperOption) *Scraper {
	s := &Scraper{rotation: rotation, fetcher: fetcher, posts: posts, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunCycle processes a single feed. A failed fetch returns an error for that feed
// only; per-item persistence failures are counted and skipped.
func (s *Scraper) RunCycle(ctx context.Context) (domain.CycleSummary, error) {
	started := s.now()
	summary := domain.CycleSummary{StartedAt: started}

	feed, ok, err := s.rotation.ClaimNextFeed(ctx, started)
	if err != nil {
		metrics.RecordCycle(metrics.StatusError, 0, 0, 0)
		return summary, fmt.Errorf("select next feed: %w", err)
	}
	if !ok {
		logger.Infof("No feeds to fetch")
		summary.Idle = true
		metrics.RecordCycle(metrics.StatusIdle, 0, 0, 0)
		return summary, nil
	}
	summary.FeedID, summary.FeedName, summary.FeedURL = feed.ID, feed.Name, feed.URL

	logger.Infof("Fetching feed: %s (%s)", feed.Name, feed.URL)
	fetched, err := s.fetch(ctx, feed.URL)
	if err != nil {
		status := metrics.StatusFetchFailed
		if errors.Is(err, domain.ErrInvalidFeedFormat) {
			status = metrics.StatusInvalidFeed
		}
		metrics.RecordCycle(status, 0, 0, 0)
		summary.Duration = s.now().Sub(started)
		logger.Errorf("Failed to fetch feed %s: %v", feed.Name, err)
		return summary, fmt.Errorf("feed %s: %w", feed.Name, err)
	}

	if len(fetched.Items) == 0 {
		logger.Infof("No posts found in %s", feed.Name)
	}
	for _, item := range fetched.Items {
		summary.ItemsSeen++
		created, err := s.persist(ctx, feed, item)
		if err != nil {
			summary.Failed++
			logger.Warnf("Failed to save post %s: %v", item.Link, err)
			continue
		}
		if created {
			summary.Saved++
		}
	}
	if len(fetched.Items) > 0 {
		logger.Infof("Saved %d new posts from %s", summary.Saved, feed.Name)
	}

	metrics.RecordCycle(metrics.StatusOK, summary.ItemsSeen, summary.Saved, summary.Failed)
	summary.Duration = s.now().Sub(started)
	return summary, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (domain.FetchedFeed, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	begin := time.Now()
	fetched, err := s.fetcher.Fetch(ctx, url)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusFetchFailed
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrFetchFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
		}
	}
	metrics.RecordFetch(status, time.Since(begin).Seconds())
	return fetched, err
}

func (s *Scraper) persist(ctx context.Context, feed domain.Feed, item domain.FetchedItem) (bool, error) {
	np := domain.NewPost{
		Title:       item.Title,
		URL:         item.Link,
		FeedID:      feed.ID,
		PublishedAt: parsePubDate(item.PubDate),
	}
	if item.Description != "" {
		desc := item.Description
		np.Description = &desc
	}
	_, created, err := s.posts.CreatePost(ctx, np)
	return created, err
}

var pubDateLayouts = []string{time.RFC1123Z, time.RFC1123}

// parsePubDate parses an RSS publish date. Unparseable values yield nil.
func parsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		logger.Warnf("Could not parse publish date %q: %v", raw, err)
		return nil
	}
	t = t.UTC()
	return &t
}
