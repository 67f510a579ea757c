package internal

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream is a non-bare repository standing in for the remote.
type upstream struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	when time.Time
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init upstream: %v", err)
	}
	return &upstream{t: t, dir: dir, repo: repo, when: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (u *upstream) commit(files map[string]string, msg string) string {
	u.t.Helper()

	wt, err := u.repo.Worktree()
	if err != nil {
		u.t.Fatalf("worktree: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(u.dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			u.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			u.t.Fatalf("write %s: %v", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			u.t.Fatalf("add %s: %v", name, err)
		}
	}

	u.when = u.when.Add(time.Hour)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: u.when},
	})
	if err != nil {
		u.t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func vcsBackends() map[string]VCS {
	return map[string]VCS{
		BackendGoGit: NewGoGitVCS("git", ""),
		BackendCLI:   NewGitCLI("git", ""),
	}
}

func TestVCSMirrorLifecycle(t *testing.T) {
	for name, vcs := range vcsBackends() {
		t.Run(name, func(t *testing.T) {
			up := newUpstream(t)
			first := up.commit(map[string]string{"src/main.txt": "one\ntwo\n"}, "initial")
			second := up.commit(map[string]string{"src/main.txt": "one\ntwo\nthree\n"}, "append")

			ctx := context.Background()
			mirror := filepath.Join(t.TempDir(), "github-acme!widgets")
			require.NoError(t, vcs.MirrorClone(ctx, up.dir, mirror))

			hash, err := vcs.RevParse(ctx, mirror, second)
			require.NoError(t, err)
			assert.Equal(t, second, hash)

			n, err := vcs.FileLines(ctx, mirror, second, "src/main.txt")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			hunks, err := vcs.Blame(ctx, mirror, "src/main.txt", second)
			require.NoError(t, err)
			lines, err := ExpandHunks(hunks)
			require.NoError(t, err)
			assert.Equal(t, []BlameLine{
				{OriginalCommit: first, OriginalFilePath: "src/main.txt", OriginalLineNumber: 1},
				{OriginalCommit: first, OriginalFilePath: "src/main.txt", OriginalLineNumber: 2},
				{OriginalCommit: second, OriginalFilePath: "src/main.txt", OriginalLineNumber: 3},
			}, lines)

			// Blame is restricted to history reachable from the commit.
			hunks, err = vcs.Blame(ctx, mirror, "src/main.txt", first)
			require.NoError(t, err)
			lines, err = ExpandHunks(hunks)
			require.NoError(t, err)
			assert.Len(t, lines, 2)

			third := up.commit(map[string]string{"README": "hello\n"}, "readme")
			_, err = vcs.RevParse(ctx, mirror, third)
			require.ErrorIs(t, err, ErrObjectNotFound)

			require.NoError(t, vcs.RemoteUpdate(ctx, mirror))
			hash, err = vcs.RevParse(ctx, mirror, third)
			require.NoError(t, err)
			assert.Equal(t, third, hash)

			// A second update with nothing new is not an error.
			require.NoError(t, vcs.RemoteUpdate(ctx, mirror))
		})
	}
}

func TestVCSVerify(t *testing.T) {
	for name, vcs := range vcsBackends() {
		t.Run(name, func(t *testing.T) {
			up := newUpstream(t)
			up.commit(map[string]string{"a.txt": "a\n"}, "initial")

			ctx := context.Background()
			broken := filepath.Join(t.TempDir(), "broken")
			require.NoError(t, os.MkdirAll(filepath.Join(broken, "objects", "pack"), 0755))
			assert.Error(t, vcs.Verify(ctx, broken))

			mirror := filepath.Join(t.TempDir(), "m")
			require.NoError(t, vcs.MirrorClone(ctx, up.dir, mirror))
			assert.NoError(t, vcs.Verify(ctx, mirror))
		})
	}
}

func TestVCSRevParseRejectsNonCommits(t *testing.T) {
	for name, vcs := range vcsBackends() {
		t.Run(name, func(t *testing.T) {
			up := newUpstream(t)
			head := up.commit(map[string]string{"a.txt": "a\n"}, "initial")

			ctx := context.Background()
			mirror := filepath.Join(t.TempDir(), "m")
			require.NoError(t, vcs.MirrorClone(ctx, up.dir, mirror))

			c, err := up.repo.CommitObject(plumbing.NewHash(head))
			require.NoError(t, err)

			for _, ref := range []string{
				c.TreeHash.String(),
				"0123456789012345678901234567890123456789",
			} {
				_, err := vcs.RevParse(ctx, mirror, ref)
				assert.True(t, errors.Is(err, ErrObjectNotFound), "%s: %v", ref, err)
			}
		})
	}
}

func TestVCSMissingPath(t *testing.T) {
	for name, vcs := range vcsBackends() {
		t.Run(name, func(t *testing.T) {
			up := newUpstream(t)
			head := up.commit(map[string]string{"a.txt": "a\n"}, "initial")

			ctx := context.Background()
			mirror := filepath.Join(t.TempDir(), "m")
			require.NoError(t, vcs.MirrorClone(ctx, up.dir, mirror))

			_, err := vcs.Blame(ctx, mirror, "missing.txt", head)
			assert.Error(t, err)
			_, err = vcs.FileLines(ctx, mirror, head, "missing.txt")
			assert.Error(t, err)
		})
	}
}

func TestVCSCloneFailure(t *testing.T) {
	for name, vcs := range vcsBackends() {
		t.Run(name, func(t *testing.T) {
			if _, err := exec.LookPath("git"); err != nil {
				t.Skip("git executable not available")
			}
			dest := filepath.Join(t.TempDir(), "m")
			err := vcs.MirrorClone(context.Background(), filepath.Join(t.TempDir(), "nope"), dest)
			assert.Error(t, err)
		})
	}
}

func TestEngineAgainstRealMirror(t *testing.T) {
	up := newUpstream(t)
	first := up.commit(map[string]string{"src/main.txt": "one\ntwo\n"}, "initial")

	vcs := NewGoGitVCS("git", "")
	root := t.TempDir()

	// RemoteBaseURL points at the parent so owner/name resolve to up.dir.
	owner := filepath.Base(filepath.Dir(up.dir))
	name := filepath.Base(up.dir)
	id := RepoID{Forge: ForgeGitHub, Owner: owner, Name: name}
	base := filepath.Dir(filepath.Dir(up.dir))

	mirrors := NewMirrorStore(root, base, vcs, nil)
	syncer, err := NewSynchronizer(vcs, nil, nil, 16)
	require.NoError(t, err)
	store, err := NewLRUBlameStore(16, nil)
	require.NoError(t, err)
	uc := NewCalculateBlameLinesUseCase(store, mirrors, syncer, NewBlamer(vcs, nil), nil, nil, nil, nil)

	ctx := context.Background()
	out, err := uc.Execute(ctx, CalculateBlameInput{RepoID: id.String(), Commit: first, FilePath: "src/main.txt"})
	require.NoError(t, err)
	assert.False(t, out.CacheHit)
	assert.Len(t, out.Lines, 2)

	second := up.commit(map[string]string{"src/main.txt": "one\ntwo\nthree\n"}, "append")
	out, err = uc.Execute(ctx, CalculateBlameInput{RepoID: id.String(), Commit: second, FilePath: "src/main.txt"})
	require.NoError(t, err)
	require.Len(t, out.Lines, 3)
	assert.Equal(t, second, out.Lines[2].OriginalCommit)
}

func TestEngineReclonesBrokenMirror(t *testing.T) {
	up := newUpstream(t)
	head := up.commit(map[string]string{"src/main.txt": "one\ntwo\n"}, "initial")

	vcs := NewGitCLI("git", "")
	root := t.TempDir()
	id := RepoID{Forge: ForgeGitHub, Owner: filepath.Base(filepath.Dir(up.dir)), Name: filepath.Base(up.dir)}
	base := filepath.Dir(filepath.Dir(up.dir))

	mirrors := NewMirrorStore(root, base, vcs, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(mirrors.MirrorPath(id), "objects"), 0755))

	syncer, err := NewSynchronizer(vcs, nil, nil, 16)
	require.NoError(t, err)
	store, err := NewLRUBlameStore(16, nil)
	require.NoError(t, err)
	uc := NewCalculateBlameLinesUseCase(store, mirrors, syncer, NewBlamer(vcs, nil), nil, nil, nil, nil)

	out, err := uc.Execute(context.Background(), CalculateBlameInput{RepoID: id.String(), Commit: head, FilePath: "src/main.txt"})
	require.NoError(t, err)
	assert.Len(t, out.Lines, 2)
}
