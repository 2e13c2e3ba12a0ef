package domain

import "time"

type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Name      string
}

type Feed struct {
	ID            string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Name          string
	URL           string
	UserID        string
	LastFetchedAt *time.Time
}

// FeedWithOwner is a feed row joined with the name of the user who added it.
type FeedWithOwner struct {
	Feed
	UserName string
}

type FeedFollow struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    string
	FeedID    string
	FeedName  string
	FeedURL   string
}

// Post is a stored feed item. Posts are immutable once created.
type Post struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Title       string
	URL         string
	Description *string
	PublishedAt *time.Time
	FeedID      string
}

// NewPost carries the fields a scrape cycle supplies when persisting an item.
type NewPost struct {
	Title       string
	URL         string
	FeedID      string
	Description *string
	PublishedAt *time.Time
}

// PostView is a post as served to browse consumers.
type PostView struct {
	ID          string
	Title       string
	URL         string
	Description *string
	PublishedAt *time.Time
	CreatedAt   time.Time
	FeedID      string
	FeedName    string
	FeedURL     string
}

// FetchedFeed is the normalized form of a remote RSS document.
type FetchedFeed struct {
	Channel FetchedChannel
	Items   []FetchedItem
}

type FetchedChannel struct {
	Title       string
	Link        string
	Description string
}

// FetchedItem keeps the raw publish date string; parsing happens during ingestion.
type FetchedItem struct {
	Title       string
	Link        string
	Description string
	PubDate     string
}

// CycleSummary reports the outcome of one scrape cycle.
type CycleSummary struct {
	Idle      bool          `json:"idle"`
	FeedID    string        `json:"feed_id,omitempty"`
	FeedName  string        `json:"feed_name,omitempty"`
	FeedURL   string        `json:"feed_url,omitempty"`
	ItemsSeen int           `json:"items_seen"`
	Saved     int           `json:"saved"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
