package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// MirrorStore lays mirrors out as one directory per repository id under a
// single root. Existence on disk means "already mirrored", so the layout
// must not change across restarts.
type MirrorStore struct {
	root    string
	baseURL string
	vcs     VCS
	log     *logrus.Logger
	metrics *Metrics
	disk    *DiskMonitor
}

type MirrorStoreOption func(*MirrorStore)

// WithDiskMonitor checks disk usage after every clone.
func WithDiskMonitor(d *DiskMonitor) MirrorStoreOption {
	return func(s *MirrorStore) { s.disk = d }
}

func WithMirrorMetrics(m *Metrics) MirrorStoreOption {
	return func(s *MirrorStore) { s.metrics = m }
}

func NewMirrorStore(root, baseURL string, vcs VCS, log *logrus.Logger, opts ...MirrorStoreOption) *MirrorStore {
	if log == nil {
		log = logrus.New()
	}
	s := &MirrorStore{
		root:    root,
		baseURL: baseURL,
		vcs:     vcs,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MirrorStore) Root() string {
	return s.root
}

func (s *MirrorStore) MirrorPath(id RepoID) string {
	return filepath.Join(s.root, id.String())
}

// OpenOrCreate returns the mirror for id, cloning it first if its directory
// does not exist or does not hold a repository. Callers must hold the lock
// for MirrorPath(id).
func (s *MirrorStore) OpenOrCreate(ctx context.Context, id RepoID) (*Mirror, error) {
	path := s.MirrorPath(id)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		verr := s.vcs.Verify(ctx, path)
		if verr == nil {
			s.log.WithField("mirror", path).Trace("using existing mirror")
			return &Mirror{ID: id, Path: path}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: open %s: %w", ErrCloneFailed, path, ctx.Err())
		}
		s.log.WithField("mirror", path).WithError(verr).Warn("mirror directory is not a repository, cloning again")
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("%w: remove broken mirror %s: %w", ErrCloneFailed, path, err)
		}
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return nil, fmt.Errorf("%w: create mirrors dir: %w", ErrCloneFailed, err)
	}

	url := id.CloneURL(s.baseURL)
	log := s.log.WithFields(logrus.Fields{"repo": id.String(), "url": url})
	log.Info("cloning mirror")
	start := time.Now()

	if err := s.vcs.MirrorClone(ctx, url, path); err != nil {
		// A half-written directory would be taken for a complete mirror.
		if rmErr := os.RemoveAll(path); rmErr != nil {
			log.WithError(rmErr).Warn("remove partial mirror")
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCloneFailed, url, err)
	}
	s.metrics.clone()

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s: mirror directory missing after clone", ErrCloneFailed, url)
	}
	log.WithField("took", time.Since(start).Round(time.Millisecond)).Info("clone complete")

	if s.disk != nil {
		if _, err := s.disk.Check(); err != nil {
			log.WithError(err).Warn("check mirror disk usage")
		}
	}

	return &Mirror{ID: id, Path: path}, nil
}
