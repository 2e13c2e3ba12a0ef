package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gator/domain"
	"gator/internal/logger"
)

// memRotation orders feeds by last fetch time, never-fetched first, then insertion order.
type memRotation struct {
	mu    sync.Mutex
	feeds []domain.Feed
	err   error
}

func newMemRotation(names ...string) *memRotation {
	r := &memRotation{}
	for _, n := range names {
		r.feeds = append(r.feeds, domain.Feed{ID: "id-" + n, Name: n, URL: "https://" + n + ".example.com/rss"})
	}
	return r
}

func (r *memRotation) NextFeed(ctx context.Context) (domain.Feed, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.next()
	if i < 0 {
		return domain.Feed{}, false, r.err
	}
	return r.feeds[i], true, nil
}

func (r *memRotation) next() int {
	best := -1
	for i, f := range r.feeds {
		if best < 0 {
			best = i
			continue
		}
		b := r.feeds[best].LastFetchedAt
		switch {
		case b == nil:
		case f.LastFetchedAt == nil:
			best = i
		case f.LastFetchedAt.Before(*b):
			best = i
		}
	}
	return best
}

func (r *memRotation) MarkFeedFetched(ctx context.Context, feedID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.feeds {
		f := &r.feeds[i]
		if f.ID == feedID && (f.LastFetchedAt == nil || f.LastFetchedAt.Before(at)) {
			ts := at
			f.LastFetchedAt = &ts
		}
	}
	return nil
}

func (r *memRotation) ClaimNextFeed(ctx context.Context, at time.Time) (domain.Feed, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domain.Feed{}, false, r.err
	}
	i := r.next()
	if i < 0 {
		return domain.Feed{}, false, nil
	}
	ts := at
	r.feeds[i].LastFetchedAt = &ts
	return r.feeds[i], true, nil
}

// stubFetcher serves documents per URL; missing URLs fail with ErrFetchFailed.
type stubFetcher struct {
	mu    sync.Mutex
	docs  map[string]domain.FetchedFeed
	errs  map[string]error
	calls []string
	block chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (domain.FetchedFeed, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	block := f.block
	doc, ok := f.docs[url]
	err := f.errs[url]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.FetchedFeed{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.FetchedFeed{}, err
	}
	if !ok {
		return domain.FetchedFeed{}, domain.ErrFetchFailed
	}
	return doc, nil
}

func (f *stubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// memPostStore deduplicates by URL and can be told to fail specific URLs.
type memPostStore struct {
	mu     sync.Mutex
	posts  map[string]domain.NewPost
	failOn map[string]bool
}

func newMemPostStore() *memPostStore {
	return &memPostStore{posts: map[string]domain.NewPost{}, failOn: map[string]bool{}}
}

func (s *memPostStore) CreatePost(ctx context.Context, p domain.NewPost) (domain.Post, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[p.URL] {
		return domain.Post{}, false, errors.Join(domain.ErrPersistenceFailure, errors.New("disk full"))
	}
	if _, ok := s.posts[p.URL]; ok {
		return domain.Post{}, false, nil
	}
	s.posts[p.URL] = p
	return domain.Post{ID: p.URL, Title: p.Title, URL: p.URL, FeedID: p.FeedID, PublishedAt: p.PublishedAt}, true, nil
}

func (s *memPostStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Z
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(prev) })
	return logs
}

func messages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}
