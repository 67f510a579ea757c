package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// GitCLI runs every operation through the git executable, the way a mirror
// is maintained by hand: clone --mirror, then remote update.
type GitCLI struct {
	gitBinary string
	token     string
}

func NewGitCLI(gitBinary, token string) *GitCLI {
	if gitBinary == "" {
		gitBinary = "git"
	}
	return &GitCLI{gitBinary: gitBinary, token: token}
}

func (g *GitCLI) MirrorClone(ctx context.Context, remoteURL, dest string) error {
	if _, err := runGit(ctx, g.gitBinary, gitAuthEnv(g.token), "clone", "--mirror", "--", remoteURL, dest); err != nil {
		return fmt.Errorf("mirror clone: %w", err)
	}
	return nil
}

func (g *GitCLI) Verify(ctx context.Context, mirrorPath string) error {
	out, err := runGit(ctx, g.gitBinary, nil, "--git-dir="+mirrorPath, "for-each-ref", "--count=1", "--format=%(refname)")
	if err != nil {
		return fmt.Errorf("open repository %s: %w", mirrorPath, err)
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("repository %s has no references", mirrorPath)
	}
	return nil
}

func (g *GitCLI) RemoteUpdate(ctx context.Context, mirrorPath string) error {
	if _, err := runGit(ctx, g.gitBinary, gitAuthEnv(g.token), "--git-dir="+mirrorPath, "remote", "update", "--prune"); err != nil {
		return fmt.Errorf("remote update: %w", err)
	}
	return nil
}

func (g *GitCLI) RevParse(ctx context.Context, mirrorPath, ref string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}

	out, err := runGit(ctx, g.gitBinary, nil, "--git-dir="+mirrorPath, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("rev-parse %s: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}

func (g *GitCLI) FileLines(ctx context.Context, mirrorPath, commit, filePath string) (int, error) {
	if err := checkRef(commit); err != nil {
		return 0, err
	}

	cmd := gitCommand(ctx, g.gitBinary, nil, "--git-dir="+mirrorPath, "cat-file", "blob", commit+":"+filePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("cat-file pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start cat-file: %w", err)
	}

	n, countErr := countLines(stdout)
	if err := cmd.Wait(); err != nil {
		return 0, fmt.Errorf("cat-file %s:%s: %w: %s", commit, filePath, err, strings.TrimSpace(stderr.String()))
	}
	if countErr != nil {
		return 0, fmt.Errorf("read %s:%s: %w", commit, filePath, countErr)
	}
	return n, nil
}

func (g *GitCLI) Blame(ctx context.Context, mirrorPath, filePath, newestCommit string) ([]Hunk, error) {
	return blamePorcelain(ctx, g.gitBinary, mirrorPath, filePath, newestCommit)
}

// blamePorcelain runs `git blame --porcelain <commit> -- <path>` against a
// bare repository and parses the output as it streams.
func blamePorcelain(ctx context.Context, gitBinary, mirrorPath, filePath, commit string) ([]Hunk, error) {
	if err := checkRef(commit); err != nil {
		return nil, err
	}

	cmd := gitCommand(ctx, gitBinary, nil, "--git-dir="+mirrorPath, "-c", "core.quotePath=false",
		"blame", "--porcelain", commit, "--", filePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("blame pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start blame: %w", err)
	}

	hunks, parseErr := ParsePorcelain(stdout)
	if parseErr != nil {
		// Drain so git is not blocked writing to a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("git blame: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if parseErr != nil {
		return nil, fmt.Errorf("parse blame: %w", parseErr)
	}
	return hunks, nil
}

// gitCommand builds a git invocation whose environment is the process
// environment plus env.
func gitCommand(ctx context.Context, gitBinary string, env []string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, gitBinary, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd
}

func runGit(ctx context.Context, gitBinary string, env []string, args ...string) (string, error) {
	cmd := gitCommand(ctx, gitBinary, env, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.String(), fmt.Errorf("git: %w: %s", err, msg)
		}
		return stdout.String(), fmt.Errorf("git: %w", err)
	}
	return stdout.String(), nil
}

// gitAuthEnv sends token as HTTP basic credentials through git's
// environment config, so it shows up neither in argv nor in the mirror's
// config file.
func gitAuthEnv(token string) []string {
	if token == "" {
		return nil
	}
	cred := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	return []string{
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.extraHeader",
		"GIT_CONFIG_VALUE_0=Authorization: Basic " + cred,
	}
}

// checkRef keeps refs from being parsed as options.
func checkRef(ref string) error {
	if ref == "" || strings.HasPrefix(ref, "-") {
		return fmt.Errorf("invalid revision %q", ref)
	}
	return nil
}

// countLines counts lines the way git does: a trailing line without a
// newline still counts.
func countLines(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	buf := make([]byte, 32*1024)
	n := 0
	var last byte = '\n'
	for {
		m, err := br.Read(buf)
		if m > 0 {
			n += bytes.Count(buf[:m], []byte{'\n'})
			last = buf[m-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}
