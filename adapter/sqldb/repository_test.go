package sqldb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gator/domain"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestRepo opens a file-backed sqlite database with a clock that advances one
// second per call, so creation order is strictly increasing.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "gator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	var mu sync.Mutex
	tick := base
	repo.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	return repo
}

func seedFeeds(t *testing.T, repo *Repository, names ...string) (domain.User, []domain.Feed) {
	t.Helper()
	ctx := context.Background()
	u, err := repo.CreateUser(ctx, "alice")
	require.NoError(t, err)
	var feeds []domain.Feed
	for _, n := range names {
		f, err := repo.CreateFeed(ctx, n, "https://"+n+".example.com/rss", u.ID)
		require.NoError(t, err)
		feeds = append(feeds, f)
	}
	return u, feeds
}

func ptr[T any](v T) *T { return &v }

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		wantErr bool
	}{
		{"postgres://u:p@localhost:5432/gator?sslmode=disable", Postgres, false},
		{"postgresql://localhost/gator", Postgres, false},
		{"sqlite:/tmp/gator.db", SQLite, false},
		{"sqlite:///tmp/gator.db", SQLite, false},
		{"file:gator.db", SQLite, false},
		{"/var/lib/gator/gator.db", SQLite, false},
		{"mysql://localhost/gator", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		d, _, err := parseURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.dialect, d, tt.in)
	}

	_, dsn, err := parseURL("sqlite:/tmp/gator.db")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/gator.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", dsn)
}

func TestPlaceholderFormatPerDialect(t *testing.T) {
	for dialect, want := range map[Dialect]string{
		Postgres: "SELECT id FROM posts WHERE url = $1",
		SQLite:   "SELECT id FROM posts WHERE url = ?",
	} {
		query, _, err := New(nil, dialect).sb.Select("id").From("posts").Where("url = ?", "u").ToSql()
		require.NoError(t, err)
		assert.Equal(t, want, query, dialect.String())
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	bob, err := repo.CreateUser(ctx, "bob")
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, "alice")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "bob")
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	got, err := repo.GetUserByName(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	got, err = repo.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Name)

	_, err = repo.GetUserByName(ctx, "carol")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)

	n, err := repo.ResetUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	users, err = repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFeedsAndFollows(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	u, feeds := seedFeeds(t, repo, "go", "rust")

	_, err := repo.CreateFeed(ctx, "go", "https://other.example.com/rss", u.ID)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "duplicate name")
	_, err = repo.CreateFeed(ctx, "golang", feeds[0].URL, u.ID)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists), "duplicate url")

	listed, err := repo.ListFeeds(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "go", listed[0].Name)
	assert.Equal(t, "alice", listed[0].UserName)
	assert.Nil(t, listed[0].LastFetchedAt)

	got, err := repo.GetFeedByURL(ctx, feeds[1].URL)
	require.NoError(t, err)
	assert.Equal(t, feeds[1], got)
	_, err = repo.GetFeedByURL(ctx, "https://missing.example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	ff, err := repo.CreateFeedFollow(ctx, u.ID, feeds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "go", ff.FeedName)
	_, err = repo.CreateFeedFollow(ctx, u.ID, feeds[0].ID)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
	_, err = repo.CreateFeedFollow(ctx, u.ID, feeds[1].ID)
	require.NoError(t, err)

	follows, err := repo.ListFeedFollows(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, follows, 2)
	assert.Equal(t, "rust", follows[1].FeedName)

	ids, err := repo.ListFollowedFeedIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{feeds[0].ID, feeds[1].ID}, ids)

	require.NoError(t, repo.DeleteFeedFollow(ctx, u.ID, feeds[0].ID))
	err = repo.DeleteFeedFollow(ctx, u.ID, feeds[0].ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreatePostDeduplicatesByURL(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a", "b")

	np := domain.NewPost{Title: "Hello", URL: "https://a.example.com/hello", FeedID: feeds[0].ID, Description: ptr("first")}
	p, created, err := repo.CreatePost(ctx, np)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, p.ID)
	assert.Nil(t, p.PublishedAt)

	// same URL seen again, even from another feed, is a no-op
	np.FeedID = feeds[1].ID
	np.Title = "Hello again"
	_, created, err = repo.CreatePost(ctx, np)
	require.NoError(t, err)
	assert.False(t, created)

	posts, total, err := repo.SearchPosts(ctx, domain.PostQuery{
		FeedIDs: []string{feeds[0].ID, feeds[1].ID},
		Sort:    domain.PostSort{Key: domain.SortByCreatedAt, Order: domain.SortDesc},
		Window:  domain.Window{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello", posts[0].Title)
	assert.Equal(t, "first", *posts[0].Description)
	assert.Equal(t, "a", posts[0].FeedName)
}

func TestCreatePostConcurrentSameURL(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a")

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := repo.CreatePost(ctx, domain.NewPost{Title: "x", URL: "https://a.example.com/x", FeedID: feeds[0].ID})
			assert.NoError(t, err)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	createdCount := 0
	for c := range results {
		if c {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
}

func TestCreatePostUnknownFeed(t *testing.T) {
	repo := newTestRepo(t)
	_, _, err := repo.CreatePost(context.Background(), domain.NewPost{Title: "x", URL: "https://x", FeedID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrPersistenceFailure), "got %v", err)
}

func TestNextFeedNullFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	f, ok, err := repo.NextFeed(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.ID)

	_, feeds := seedFeeds(t, repo, "a", "b", "c")
	require.NoError(t, repo.MarkFeedFetched(ctx, feeds[0].ID, base.Add(time.Hour)))
	require.NoError(t, repo.MarkFeedFetched(ctx, feeds[1].ID, base.Add(2*time.Hour)))

	f, ok, err = repo.NextFeed(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", f.Name)

	require.NoError(t, repo.MarkFeedFetched(ctx, feeds[2].ID, base.Add(3*time.Hour)))
	f, _, err = repo.NextFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", f.Name)
}

func TestMarkFeedFetchedIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a")

	later := base.Add(2 * time.Hour)
	require.NoError(t, repo.MarkFeedFetched(ctx, feeds[0].ID, later))
	require.NoError(t, repo.MarkFeedFetched(ctx, feeds[0].ID, base.Add(time.Hour)))

	f, err := repo.GetFeedByURL(ctx, feeds[0].URL)
	require.NoError(t, err)
	require.NotNil(t, f.LastFetchedAt)
	assert.True(t, later.Equal(*f.LastFetchedAt))
}

func TestClaimNextFeedRotationFairness(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a", "b", "c", "d")

	at := base.Add(time.Hour)
	for round := 0; round < 3; round++ {
		seen := map[string]bool{}
		for i := 0; i < len(feeds); i++ {
			at = at.Add(time.Minute)
			f, ok, err := repo.ClaimNextFeed(ctx, at)
			require.NoError(t, err)
			require.True(t, ok)
			require.NotNil(t, f.LastFetchedAt)
			assert.True(t, at.Equal(*f.LastFetchedAt))
			assert.False(t, seen[f.ID], "feed %s claimed twice in round %d", f.Name, round)
			seen[f.ID] = true
		}
		assert.Len(t, seen, len(feeds))
	}
}

func TestClaimNextFeedEmpty(t *testing.T) {
	repo := newTestRepo(t)
	_, ok, err := repo.ClaimNextFeed(context.Background(), base)
	require.NoError(t, err)
	assert.False(t, ok)
}

type postSeed struct {
	title     string
	feed      int
	published *time.Time
}

func seedPosts(t *testing.T, repo *Repository, feeds []domain.Feed, seeds []postSeed) {
	t.Helper()
	for i, s := range seeds {
		_, created, err := repo.CreatePost(context.Background(), domain.NewPost{
			Title:       s.title,
			URL:         fmt.Sprintf("https://posts.example.com/%d", i),
			FeedID:      feeds[s.feed].ID,
			PublishedAt: s.published,
		})
		require.NoError(t, err)
		require.True(t, created)
	}
}

func titles(posts []domain.PostView) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestSearchPostsSortAndTiebreak(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a")

	day := ptr(base.AddDate(0, 0, -1))
	seedPosts(t, repo, feeds, []postSeed{
		{"p1", 0, day},
		{"p2", 0, day},
		{"p3", 0, day},
		{"old", 0, ptr(base.AddDate(0, 0, -7))},
		{"undated", 0, nil},
	})
	ids := []string{feeds[0].ID}

	search := func(key domain.SortKey, order domain.SortOrder) []string {
		posts, total, err := repo.SearchPosts(ctx, domain.PostQuery{
			FeedIDs: ids,
			Sort:    domain.PostSort{Key: key, Order: order},
			Window:  domain.Window{Limit: 10},
		})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		return titles(posts)
	}

	// equal published dates fall back to newest created first
	assert.Equal(t, []string{"p3", "p2", "p1", "old", "undated"}, search(domain.SortByPublishedAt, domain.SortDesc))
	assert.Equal(t, []string{"old", "p3", "p2", "p1", "undated"}, search(domain.SortByPublishedAt, domain.SortAsc))
	assert.Equal(t, []string{"p1", "p2", "p3", "old", "undated"}, search(domain.SortByCreatedAt, domain.SortAsc))
	assert.Equal(t, []string{"old", "p1", "p2", "p3", "undated"}, search(domain.SortByTitle, domain.SortAsc))
}

func TestSearchPostsFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "Go Blog", "Rust News", "other")

	seedPosts(t, repo, feeds, []postSeed{
		{"Generics in Go", 0, ptr(base.AddDate(0, 0, -10))},
		{"Go 1.23 released", 0, ptr(base.AddDate(0, 0, -2))},
		{"Rust 2024 edition", 1, ptr(base.AddDate(0, 0, -3))},
		{"100% safe_code", 1, ptr(base.AddDate(0, 0, -1))},
		{"Hidden", 2, ptr(base.AddDate(0, 0, -1))},
	})
	followed := []string{feeds[0].ID, feeds[1].ID}

	run := func(filters ...domain.PostFilter) []string {
		posts, total, err := repo.SearchPosts(ctx, domain.PostQuery{
			FeedIDs: followed,
			Filters: filters,
			Sort:    domain.PostSort{Key: domain.SortByPublishedAt, Order: domain.SortDesc},
			Window:  domain.Window{Limit: 10},
		})
		require.NoError(t, err)
		assert.Len(t, posts, total)
		return titles(posts)
	}

	assert.Equal(t, []string{"100% safe_code", "Go 1.23 released", "Rust 2024 edition", "Generics in Go"}, run())
	assert.Equal(t, []string{"Go 1.23 released", "Generics in Go"}, run(domain.FeedNameContains("go blog")))
	assert.Equal(t, []string{"Go 1.23 released", "Generics in Go"}, run(domain.TitleContains("GO")))
	assert.Equal(t, []string{"100% safe_code"}, run(domain.TitleContains("100%")))
	assert.Equal(t, []string{"100% safe_code"}, run(domain.TitleContains("%")))
	assert.Empty(t, run(domain.TitleContains("o_")))
	assert.Equal(t, []string{"100% safe_code"}, run(domain.TitleContains("safe_")))
	assert.Equal(t, []string{"100% safe_code", "Go 1.23 released"},
		run(domain.PublishedOnOrAfter(base.AddDate(0, 0, -2))))
	assert.Equal(t, []string{"Rust 2024 edition"}, run(
		domain.FeedNameContains("rust"),
		domain.PublishedOnOrAfter(base.AddDate(0, 0, -5)),
		domain.PublishedOnOrBefore(base.AddDate(0, 0, -3)),
	))
}

func TestSearchPostsFiltersFoldNonASCII(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "Österreich News", "Plain")

	seedPosts(t, repo, feeds, []postSeed{
		{"Über Go", 0, ptr(base.AddDate(0, 0, -1))},
		{"ÉTÉ en France", 1, ptr(base.AddDate(0, 0, -2))},
		{"unrelated", 1, ptr(base.AddDate(0, 0, -3))},
	})
	ids := []string{feeds[0].ID, feeds[1].ID}

	run := func(f domain.PostFilter) []string {
		posts, total, err := repo.SearchPosts(ctx, domain.PostQuery{
			FeedIDs: ids,
			Filters: []domain.PostFilter{f},
			Sort:    domain.PostSort{Key: domain.SortByPublishedAt, Order: domain.SortDesc},
			Window:  domain.Window{Limit: 10},
		})
		require.NoError(t, err)
		assert.Len(t, posts, total)
		return titles(posts)
	}

	assert.Equal(t, []string{"Über Go"}, run(domain.TitleContains("Über")))
	assert.Equal(t, []string{"Über Go"}, run(domain.TitleContains("über")))
	assert.Equal(t, []string{"ÉTÉ en France"}, run(domain.TitleContains("été")))
	assert.Equal(t, []string{"Über Go"}, run(domain.FeedNameContains("österreich")))
	assert.Equal(t, []string{"Über Go"}, run(domain.FeedNameContains("ÖSTERREICH")))
}

func TestSearchPostsPaginationLaw(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a", "b")

	var seeds []postSeed
	for i := 0; i < 25; i++ {
		seeds = append(seeds, postSeed{fmt.Sprintf("post-%02d", i), i % 2, ptr(base.Add(-time.Duration(i) * time.Hour))})
	}
	seedPosts(t, repo, feeds, seeds)
	ids := []string{feeds[0].ID, feeds[1].ID}

	all, total, err := repo.SearchPosts(ctx, domain.PostQuery{
		FeedIDs: ids,
		Sort:    domain.PostSort{Key: domain.SortByPublishedAt, Order: domain.SortDesc},
		Window:  domain.Window{Limit: 100},
	})
	require.NoError(t, err)
	require.Equal(t, 25, total)

	var paged []domain.PostView
	for offset := 0; ; offset += 10 {
		w := domain.Window{Limit: 10, Offset: offset}
		page, n, err := repo.SearchPosts(ctx, domain.PostQuery{
			FeedIDs: ids,
			Sort:    domain.PostSort{Key: domain.SortByPublishedAt, Order: domain.SortDesc},
			Window:  w,
		})
		require.NoError(t, err)
		assert.Equal(t, 25, n)
		paged = append(paged, page...)
		if !w.HasMore(n) {
			break
		}
	}
	assert.Equal(t, all, paged)
}

func TestSearchPostsUnfollowedFeedsExcluded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a", "b")
	seedPosts(t, repo, feeds, []postSeed{{"in-a", 0, nil}, {"in-b", 1, nil}})

	posts, total, err := repo.SearchPosts(ctx, domain.PostQuery{
		FeedIDs: []string{feeds[1].ID},
		Sort:    domain.PostSort{Key: domain.SortByCreatedAt, Order: domain.SortDesc},
		Window:  domain.Window{Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"in-b"}, titles(posts))
}

func TestResetCascades(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, feeds := seedFeeds(t, repo, "a")
	seedPosts(t, repo, feeds, []postSeed{{"x", 0, nil}})

	_, err := repo.ResetUsers(ctx)
	require.NoError(t, err)

	listed, err := repo.ListFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
	_, total, err := repo.SearchPosts(ctx, domain.PostQuery{
		FeedIDs: []string{feeds[0].ID},
		Window:  domain.Window{Limit: 10},
	})
	require.NoError(t, err)
	assert.Zero(t, total)
}
