package domain

import "errors"

var (
	// ErrGistList is returned when listing gists from the hosting API fails.
	ErrGistList = errors.New("gist list failed")
	// ErrContentFetch is returned when a raw gist file cannot be downloaded.
	ErrContentFetch = errors.New("gist content fetch failed")
	// ErrUniquenessViolation is returned when (slug, slug_counter) collides with another gist's post.
	ErrUniquenessViolation = errors.New("slug uniqueness violation")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	// ErrSyncInProgress is returned when another sync cycle holds the sync lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)
