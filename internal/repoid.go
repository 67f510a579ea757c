package internal

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	ForgeGitHub = "github"

	DefaultRemoteBaseURL = "https://github.com"
)

// RepoID identifies a remote repository. The textual form is
// "github-<owner>!<name>".
type RepoID struct {
	Forge string
	Owner string
	Name  string
}

func ParseRepoID(s string) (RepoID, error) {
	rest, ok := strings.CutPrefix(s, ForgeGitHub+"-")
	if !ok {
		return RepoID{}, fmt.Errorf("%w: %q: missing %q prefix", ErrInvalidRepoID, s, ForgeGitHub+"-")
	}

	owner, name, ok := strings.Cut(rest, "!")
	if !ok {
		return RepoID{}, fmt.Errorf("%w: %q: missing '!' delimiter", ErrInvalidRepoID, s)
	}

	for _, seg := range []string{owner, name} {
		if err := validateSegment(seg); err != nil {
			return RepoID{}, fmt.Errorf("%w: %q: %v", ErrInvalidRepoID, s, err)
		}
	}

	return RepoID{Forge: ForgeGitHub, Owner: owner, Name: name}, nil
}

// commitPattern matches full or abbreviated object names. Branches, tags
// and HEAD move, so a blame cached under them would go stale.
var commitPattern = regexp.MustCompile(`^[0-9a-f]{4,64}$`)

// ParseCommit accepts a hexadecimal commit id and returns it lowercased.
func ParseCommit(s string) (string, error) {
	c := strings.ToLower(s)
	if !commitPattern.MatchString(c) {
		return "", fmt.Errorf("%w: %q: want 4 to 64 hex digits", ErrInvalidCommit, s)
	}
	return c, nil
}

// validateSegment keeps owner and name usable as a single directory name.
func validateSegment(seg string) error {
	switch seg {
	case "":
		return fmt.Errorf("empty segment")
	case ".", "..":
		return fmt.Errorf("segment %q not allowed", seg)
	}
	for _, r := range seg {
		if r == '!' || r == '/' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("segment %q contains %q", seg, r)
		}
	}
	return nil
}

func (id RepoID) String() string {
	return fmt.Sprintf("%s-%s!%s", id.Forge, id.Owner, id.Name)
}

// CloneURL returns the remote URL of the repository under base. An empty base
// means github.com.
func (id RepoID) CloneURL(base string) string {
	if base == "" {
		base = DefaultRemoteBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + id.Owner + "/" + id.Name
}
