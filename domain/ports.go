package domain

import (
	"context"
	"time"
)

// FeedFetcher fetches and parses a remote RSS document.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (FetchedFeed, error)
}

// PostStore persists posts. CreatePost reports created == false when the URL already exists.
type PostStore interface {
	CreatePost(ctx context.Context, p NewPost) (Post, bool, error)
}

// FeedRotation picks the least recently fetched feed and records fetch attempts.
type FeedRotation interface {
	NextFeed(ctx context.Context) (Feed, bool, error)
	MarkFeedFetched(ctx context.Context, feedID string, at time.Time) error
	ClaimNextFeed(ctx context.Context, at time.Time) (Feed, bool, error)
}

// PostSearcher executes a resolved post query.
type PostSearcher interface {
	SearchPosts(ctx context.Context, q PostQuery) ([]PostView, int, error)
}

// FollowLister resolves the feeds a user receives posts from.
type FollowLister interface {
	ListFollowedFeedIDs(ctx context.Context, userID string) ([]string, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, name string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ResetUsers(ctx context.Context) (int64, error)
}

type FeedRepository interface {
	CreateFeed(ctx context.Context, name, url, userID string) (Feed, error)
	ListFeeds(ctx context.Context) ([]FeedWithOwner, error)
	GetFeedByURL(ctx context.Context, url string) (Feed, error)
}

type FollowRepository interface {
	FollowLister
	CreateFeedFollow(ctx context.Context, userID, feedID string) (FeedFollow, error)
	ListFeedFollows(ctx context.Context, userID string) ([]FeedFollow, error)
	DeleteFeedFollow(ctx context.Context, userID, feedID string) error
}

// SchedulerStatus is a point-in-time view of the scheduler loop.
type SchedulerStatus struct {
	State           string        `json:"state"`
	Interval        time.Duration `json:"interval"`
	CyclesStarted   int64         `json:"cycles_started"`
	CyclesCompleted int64         `json:"cycles_completed"`
	LastRunAt       *time.Time    `json:"last_run_at,omitempty"`
	LastSummary     *CycleSummary `json:"last_summary,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
}
