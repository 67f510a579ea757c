package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// Synchronizer makes sure a mirror contains a commit, fetching from the
// remote only when it does not.
type Synchronizer struct {
	vcs     VCS
	log     *logrus.Logger
	metrics *Metrics
	known   *lru.Cache // "<mirror path>\x00<commit>" -> struct{}
}

// NewSynchronizer remembers up to knownSize commits already confirmed
// present; zero disables the memo.
func NewSynchronizer(vcs VCS, log *logrus.Logger, metrics *Metrics, knownSize int) (*Synchronizer, error) {
	if log == nil {
		log = logrus.New()
	}
	s := &Synchronizer{vcs: vcs, log: log, metrics: metrics}
	if knownSize > 0 {
		known, err := lru.New(knownSize)
		if err != nil {
			return nil, fmt.Errorf("create known commits cache: %w", err)
		}
		s.known = known
	}
	return s, nil
}

// EnsureCommit returns nil once commit resolves to a commit object in the
// mirror. At most one remote update is attempted.
func (s *Synchronizer) EnsureCommit(ctx context.Context, m *Mirror, commit string) error {
	if s.isKnown(m.Path, commit) {
		return nil
	}

	hash, err := s.resolve(ctx, m, commit)
	if err != nil {
		return err
	}
	if hash != "" {
		s.remember(m.Path, commit, hash)
		return nil
	}

	log := s.log.WithFields(logrus.Fields{"repo": m.ID.String(), "commit": commit})
	log.Info("commit not in mirror, updating remotes")
	s.metrics.remoteUpdate()

	if err := s.vcs.RemoteUpdate(ctx, m.Path); err != nil {
		return fmt.Errorf("%w: %s in %s: remote update: %w", ErrCommitNotFound, commit, m.ID, err)
	}

	hash, err = s.resolve(ctx, m, commit)
	if err != nil {
		return err
	}
	if hash == "" {
		return fmt.Errorf("%w: %s in %s after remote update", ErrCommitNotFound, commit, m.ID)
	}

	s.remember(m.Path, commit, hash)
	return nil
}

// resolve returns the full hash of commit, or "" when the mirror lacks it.
func (s *Synchronizer) resolve(ctx context.Context, m *Mirror, commit string) (string, error) {
	hash, err := s.vcs.RevParse(ctx, m.Path, commit)
	if errors.Is(err, ErrObjectNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: rev-parse %s in %s: %w", ErrCommitNotFound, commit, m.ID, err)
	}
	return hash, nil
}

// Forget drops every remembered commit of the mirror at path.
func (s *Synchronizer) Forget(path string) {
	if s.known == nil {
		return
	}
	prefix := path + "\x00"
	for _, k := range s.known.Keys() {
		if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
			s.known.Remove(k)
		}
	}
}

func (s *Synchronizer) isKnown(path, commit string) bool {
	if s.known == nil {
		return false
	}
	return s.known.Contains(path + "\x00" + commit)
}

// remember only memoizes full hashes: branch names and abbreviations can
// start resolving to something else after a fetch.
func (s *Synchronizer) remember(path, commit, hash string) {
	if s.known != nil && strings.EqualFold(commit, hash) {
		s.known.Add(path+"\x00"+commit, struct{}{})
	}
}
