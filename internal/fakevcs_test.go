package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// fakeVCS is an in-memory remote plus mirrors. It counts every call so
// tests can assert on the network and process work the engine did.
type fakeVCS struct {
	mu sync.Mutex

	// upstream commits are present right after a clone; late commits only
	// arrive with a remote update.
	upstream map[string]bool
	late     map[string]bool

	hunks     map[string][]Hunk // commit\x00path
	lineCount map[string]int    // overrides the hunk total

	local map[string]map[string]bool // mirror path -> commits

	cloneDelay time.Duration
	cloneErr   error
	updateErr  error

	clones    int
	verifies  int
	updates   int
	revParses int
	blames    int
	cloneURLs []string
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{
		upstream:  make(map[string]bool),
		late:      make(map[string]bool),
		hunks:     make(map[string][]Hunk),
		lineCount: make(map[string]int),
		local:     make(map[string]map[string]bool),
	}
}

func (f *fakeVCS) addFile(commit, path string, hunks ...Hunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upstream[commit] = true
	f.hunks[commit+"\x00"+path] = hunks
}

func (f *fakeVCS) push(commit, path string, hunks ...Hunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.late[commit] = true
	f.hunks[commit+"\x00"+path] = hunks
}

func (f *fakeVCS) counts() (clones, updates, revParses, blames int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clones, f.updates, f.revParses, f.blames
}

func (f *fakeVCS) MirrorClone(ctx context.Context, remoteURL, dest string) error {
	f.mu.Lock()
	f.clones++
	f.cloneURLs = append(f.cloneURLs, remoteURL)
	delay, cloneErr := f.cloneDelay, f.cloneErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if cloneErr != nil {
		return cloneErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.local[dest]; ok {
		return fmt.Errorf("destination path %s already exists", dest)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	commits := make(map[string]bool)
	for c := range f.upstream {
		commits[c] = true
	}
	f.local[dest] = commits
	return nil
}

func (f *fakeVCS) Verify(ctx context.Context, mirrorPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	if _, ok := f.local[mirrorPath]; !ok {
		return fmt.Errorf("not a mirror: %s", mirrorPath)
	}
	return nil
}

// adopt registers an already existing directory as a mirror holding the
// upstream commits.
func (f *fakeVCS) adopt(mirrorPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := make(map[string]bool)
	for c := range f.upstream {
		commits[c] = true
	}
	f.local[mirrorPath] = commits
}

func (f *fakeVCS) RemoteUpdate(ctx context.Context, mirrorPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	commits, ok := f.local[mirrorPath]
	if !ok {
		return fmt.Errorf("not a mirror: %s", mirrorPath)
	}
	for c := range f.upstream {
		commits[c] = true
	}
	for c := range f.late {
		commits[c] = true
	}
	return nil
}

func (f *fakeVCS) RevParse(ctx context.Context, mirrorPath, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revParses++
	commits, ok := f.local[mirrorPath]
	if !ok {
		return "", fmt.Errorf("not a mirror: %s", mirrorPath)
	}
	if !commits[ref] {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	return ref, nil
}

func (f *fakeVCS) Blame(ctx context.Context, mirrorPath, filePath, newestCommit string) ([]Hunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blames++
	hunks, ok := f.hunks[newestCommit+"\x00"+filePath]
	if !ok {
		return nil, errors.New("no such path " + filePath)
	}
	return append([]Hunk(nil), hunks...), nil
}

func (f *fakeVCS) FileLines(ctx context.Context, mirrorPath, commit, filePath string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := commit + "\x00" + filePath
	if n, ok := f.lineCount[key]; ok {
		return n, nil
	}
	hunks, ok := f.hunks[key]
	if !ok {
		return 0, errors.New("no such path " + filePath)
	}
	n := 0
	for _, h := range hunks {
		n += h.Lines
	}
	return n, nil
}

// memStore is a BlameStore over a plain map with optional failures.
type memStore struct {
	mu        sync.Mutex
	entries   map[string][]BlameLine
	inserts   int
	lookupErr error
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]BlameLine)}
}

func (s *memStore) Lookup(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, false, s.lookupErr
	}
	lines, ok := s.entries[cacheKey(commit, filePath)]
	return cloneLines(lines), ok, nil
}

func (s *memStore) Insert(ctx context.Context, commit, filePath string, lines []BlameLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	key := cacheKey(commit, filePath)
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = cloneLines(lines)
	}
	return nil
}

func (s *memStore) Close() error { return nil }
