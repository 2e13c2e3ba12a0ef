package domain

import "errors"

var (
	// ErrConfiguration marks invalid startup configuration such as a bad interval.
	ErrConfiguration = errors.New("configuration error")
	// ErrFetchFailed marks transport-level failures while retrieving a feed.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrInvalidFeedFormat marks documents without a usable RSS channel.
	ErrInvalidFeedFormat = errors.New("invalid feed format")
	// ErrPersistenceFailure marks unexpected storage errors on a single write.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrInvalidQuery       = errors.New("invalid query")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
)
