package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Use case input/output DTOs

type CalculateBlameInput struct {
	RepoID   string
	Commit   string
	FilePath string
}

type CalculateBlameOutput struct {
	Lines    []BlameLine
	CacheHit bool
}

// Use cases

// CalculateBlameLinesUseCase answers blame requests from the store when it
// can and otherwise mirrors, fetches and blames the repository, writing the
// result back.
type CalculateBlameLinesUseCase struct {
	store   BlameStore
	mirrors *MirrorStore
	syncer  *Synchronizer
	blamer  *Blamer
	locks   *KeyedLock
	filter  *PathFilter
	log     *logrus.Logger
	metrics *Metrics
}

func NewCalculateBlameLinesUseCase(
	store BlameStore,
	mirrors *MirrorStore,
	syncer *Synchronizer,
	blamer *Blamer,
	locks *KeyedLock,
	filter *PathFilter,
	log *logrus.Logger,
	metrics *Metrics,
) *CalculateBlameLinesUseCase {
	if log == nil {
		log = logrus.New()
	}
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &CalculateBlameLinesUseCase{
		store:   store,
		mirrors: mirrors,
		syncer:  syncer,
		blamer:  blamer,
		locks:   locks,
		filter:  filter,
		log:     log,
		metrics: metrics,
	}
}

func (uc *CalculateBlameLinesUseCase) Execute(ctx context.Context, input CalculateBlameInput) (out *CalculateBlameOutput, err error) {
	start := time.Now()
	defer func() {
		uc.metrics.observe(time.Since(start).Seconds())
		if err != nil {
			uc.metrics.resolveError(err)
		}
	}()

	commit, err := ParseCommit(input.Commit)
	if err != nil {
		return nil, err
	}

	lines, ok, err := uc.store.Lookup(ctx, commit, input.FilePath)
	if err != nil {
		return nil, fmt.Errorf("lookup blame: %w", err)
	}
	uc.metrics.cacheLookup(ok)
	if ok {
		return &CalculateBlameOutput{Lines: lines, CacheHit: true}, nil
	}

	id, err := ParseRepoID(input.RepoID)
	if err != nil {
		return nil, err
	}
	if uc.filter.Excluded(input.FilePath) {
		return nil, fmt.Errorf("%w: %s", ErrPathExcluded, input.FilePath)
	}

	lines, err = uc.compute(ctx, id, commit, input.FilePath)
	if err != nil {
		return nil, err
	}

	if err := uc.store.Insert(ctx, commit, input.FilePath, lines); err != nil {
		uc.metrics.cacheWriteFailure()
		uc.log.WithFields(logrus.Fields{
			"repo_id": input.RepoID,
			"commit":  commit,
			"path":    input.FilePath,
		}).WithError(err).Error("cache write failed")
	}

	return &CalculateBlameOutput{Lines: lines, CacheHit: false}, nil
}

// compute holds the mirror lock while the mirror is cloned, updated and
// blamed.
func (uc *CalculateBlameLinesUseCase) compute(ctx context.Context, id RepoID, commit, filePath string) ([]BlameLine, error) {
	unlock, err := uc.locks.Lock(ctx, uc.mirrors.MirrorPath(id))
	if err != nil {
		return nil, fmt.Errorf("wait for mirror %s: %w", id, err)
	}
	defer unlock()

	mirror, err := uc.mirrors.OpenOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := uc.syncer.EnsureCommit(ctx, mirror, commit); err != nil {
		return nil, err
	}

	return uc.blamer.Compute(ctx, mirror, commit, filePath)
}

// Blame reports whether the blame for (commit, filePath) was already cached,
// computing and caching it if it was not.
func (uc *CalculateBlameLinesUseCase) Blame(ctx context.Context, repoID, commit, filePath string) (bool, error) {
	out, err := uc.Execute(ctx, CalculateBlameInput{RepoID: repoID, Commit: commit, FilePath: filePath})
	if err != nil {
		return false, err
	}
	return out.CacheHit, nil
}
