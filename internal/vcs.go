package internal

import "context"

// Hunk is a contiguous run of destination lines sharing one originating
// commit and source path.
type Hunk struct {
	Commit     string
	Path       string
	OrigStart  int // 1-indexed line in Path at Commit
	FinalStart int // 1-indexed line in the blamed file
	Lines      int
}

// VCS is everything the engine needs from git. Implementations must be safe
// for concurrent use on different mirror paths.
type VCS interface {
	// MirrorClone clones remoteURL into dest as a mirror tracking all refs.
	MirrorClone(ctx context.Context, remoteURL, dest string) error
	// Verify fails when mirrorPath is not a usable repository, such as the
	// remains of a clone that was killed halfway.
	Verify(ctx context.Context, mirrorPath string) error
	// RemoteUpdate fetches every remote of the mirror, pruning deleted refs.
	RemoteUpdate(ctx context.Context, mirrorPath string) error
	// RevParse resolves ref to a commit hash. It returns ErrObjectNotFound
	// when ref is unknown or does not name a commit.
	RevParse(ctx context.Context, mirrorPath, ref string) (string, error)
	// Blame attributes filePath as of newestCommit, in destination order.
	Blame(ctx context.Context, mirrorPath, filePath, newestCommit string) ([]Hunk, error)
	// FileLines counts the lines of filePath at commit.
	FileLines(ctx context.Context, mirrorPath, commit, filePath string) (int, error)
}
