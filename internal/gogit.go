package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// GoGitVCS talks to mirrors through go-git. Blame goes through the git
// executable: go-git's blame does not report original line numbers or
// paths.
type GoGitVCS struct {
	gitBinary string
	token     string
}

func NewGoGitVCS(gitBinary, token string) *GoGitVCS {
	if gitBinary == "" {
		gitBinary = "git"
	}
	return &GoGitVCS{gitBinary: gitBinary, token: token}
}

func (v *GoGitVCS) open(path string) (*git.Repository, error) {
	fs := osfs.New(path)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())

	repo, err := git.Open(storage, nil)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return repo, nil
}

func (v *GoGitVCS) auth(url string) transport.AuthMethod {
	if v.token == "" || !strings.HasPrefix(url, "http") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: v.token}
}

func (v *GoGitVCS) MirrorClone(ctx context.Context, remoteURL, dest string) error {
	_, err := git.PlainCloneContext(ctx, dest, true, &git.CloneOptions{
		URL:    remoteURL,
		Mirror: true,
		Auth:   v.auth(remoteURL),
	})
	if err != nil {
		return fmt.Errorf("mirror clone: %w", err)
	}
	return nil
}

func (v *GoGitVCS) Verify(ctx context.Context, mirrorPath string) error {
	repo, err := v.open(mirrorPath)
	if err != nil {
		return err
	}
	refs, err := repo.References()
	if err != nil {
		return fmt.Errorf("list references %s: %w", mirrorPath, err)
	}
	defer refs.Close()

	for {
		ref, err := refs.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("repository %s has no references", mirrorPath)
		}
		if err != nil {
			return fmt.Errorf("list references %s: %w", mirrorPath, err)
		}
		if ref.Name() != plumbing.HEAD {
			return nil
		}
	}
}

func (v *GoGitVCS) RemoteUpdate(ctx context.Context, mirrorPath string) error {
	repo, err := v.open(mirrorPath)
	if err != nil {
		return err
	}

	remotes, err := repo.Remotes()
	if err != nil {
		return fmt.Errorf("list remotes: %w", err)
	}
	if len(remotes) == 0 {
		return fmt.Errorf("mirror %s has no remotes", mirrorPath)
	}

	for _, remote := range remotes {
		cfg := remote.Config()
		var url string
		if len(cfg.URLs) > 0 {
			url = cfg.URLs[0]
		}

		err := remote.FetchContext(ctx, &git.FetchOptions{
			RemoteName: cfg.Name,
			Auth:       v.auth(url),
			Force:      true,
			Prune:      true,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("fetch %s: %w", cfg.Name, err)
		}
	}

	return nil
}

func (v *GoGitVCS) RevParse(ctx context.Context, mirrorPath, ref string) (string, error) {
	repo, err := v.open(mirrorPath)
	if err != nil {
		return "", err
	}

	commit, err := v.commit(repo, ref)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

// commit resolves ref and insists the object is a commit, not a tag, tree or
// blob that happens to match.
func (v *GoGitVCS) commit(repo *git.Repository, ref string) (*object.Commit, error) {
	resolved, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", ErrObjectNotFound, ref, err)
	}

	commit, err := repo.CommitObject(*resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) || errors.Is(err, object.ErrUnsupportedObject) {
		return nil, fmt.Errorf("%w: %s is not a commit", ErrObjectNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", ref, err)
	}
	return commit, nil
}

func (v *GoGitVCS) FileLines(ctx context.Context, mirrorPath, commit, filePath string) (int, error) {
	repo, err := v.open(mirrorPath)
	if err != nil {
		return 0, err
	}

	c, err := v.commit(repo, commit)
	if err != nil {
		return 0, err
	}

	f, err := c.File(filePath)
	if err != nil {
		return 0, fmt.Errorf("get file %s: %w", filePath, err)
	}

	lines, err := f.Lines()
	if err != nil {
		return 0, fmt.Errorf("read file %s: %w", filePath, err)
	}
	return len(lines), nil
}

func (v *GoGitVCS) Blame(ctx context.Context, mirrorPath, filePath, newestCommit string) ([]Hunk, error) {
	return blamePorcelain(ctx, v.gitBinary, mirrorPath, filePath, newestCommit)
}
