package app

import (
	"context"
	"fmt"

	"gator/domain"
)

// PostQueryEngine serves filtered, sorted and paginated post queries. It is read-only.
type PostQueryEngine struct {
	store   domain.PostSearcher
	follows domain.FollowLister
}

func NewPostQueryEngine(store domain.PostSearcher, follows domain.FollowLister) *PostQueryEngine {
	return &PostQueryEngine{store: store, follows: follows}
}

// QueryPosts searches posts of the given feeds. An empty feed set yields an empty page.
func (e *PostQueryEngine) QueryPosts(ctx context.Context, feedIDs []string, opts domain.PostQueryOptions) (domain.PostPage, error) {
	if len(feedIDs) == 0 {
		return domain.PostPage{}, nil
	}
	q, err := opts.Compile(feedIDs)
	if err != nil {
		return domain.PostPage{}, err
	}

	posts, total, err := e.store.SearchPosts(ctx, q)
	if err != nil {
		return domain.PostPage{}, fmt.Errorf("search posts: %w", err)
	}
	return domain.PostPage{
		Posts:      posts,
		TotalCount: total,
		HasMore:    q.Window.HasMore(total),
	}, nil
}

// QueryPostsForUser resolves the user's followed feeds and queries their posts.
func (e *PostQueryEngine) QueryPostsForUser(ctx context.Context, userID string, opts domain.PostQueryOptions) (domain.PostPage, error) {
	if e.follows == nil {
		return domain.PostPage{}, fmt.Errorf("no follow resolver configured")
	}
	ids, err := e.follows.ListFollowedFeedIDs(ctx, userID)
	if err != nil {
		return domain.PostPage{}, fmt.Errorf("list followed feeds: %w", err)
	}
	return e.QueryPosts(ctx, ids, opts)
}
