package internal

import (
	"context"
	"errors"
)

var (
	ErrInvalidRepoID    = errors.New("invalid repository id")
	ErrInvalidCommit    = errors.New("invalid commit id")
	ErrCloneFailed      = errors.New("clone failed")
	ErrCommitNotFound   = errors.New("commit not found")
	ErrBlameFailed      = errors.New("blame failed")
	ErrCacheUnavailable = errors.New("cache store unavailable")
	ErrObjectNotFound   = errors.New("object not found")
)

// ErrPathExcluded is returned for paths matched by exclude_paths. It is a
// blame failure as far as callers are concerned.
var ErrPathExcluded = &excludedError{}

type excludedError struct{}

func (*excludedError) Error() string        { return "path excluded from blame" }
func (*excludedError) Is(target error) bool { return target == ErrBlameFailed }

// BlameLine attributes one line of a file, as of some commit, to the commit
// that last touched it.
type BlameLine struct {
	OriginalCommit     string `json:"original_commit"`
	OriginalFilePath   string `json:"original_file_path"`
	OriginalLineNumber int    `json:"original_line_number"`
}

// BlameStore persists blame results keyed by (commit, file path). Entries are
// final once written: Insert on an existing key is a no-op.
type BlameStore interface {
	Lookup(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error)
	Insert(ctx context.Context, commit, filePath string, lines []BlameLine) error
	Close() error
}

// Mirror is a bare clone tracking all refs of one remote repository.
type Mirror struct {
	ID   RepoID
	Path string
}
