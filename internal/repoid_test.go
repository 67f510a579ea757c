package internal

import (
	"errors"
	"testing"
)

func TestParseRepoID(t *testing.T) {
	tests := []struct {
		in    string
		owner string
		name  string
	}{
		{"github-acme!widgets", "acme", "widgets"},
		{"github-my-org!my-repo", "my-org", "my-repo"},
		{"github-a!b.c", "a", "b.c"},
		{"github-Octo_Cat!hello.world", "Octo_Cat", "hello.world"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := ParseRepoID(tt.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if id.Forge != ForgeGitHub || id.Owner != tt.owner || id.Name != tt.name {
				t.Errorf("got %+v", id)
			}
			if id.String() != tt.in {
				t.Errorf("round trip: got %q, want %q", id.String(), tt.in)
			}
		})
	}
}

func TestParseRepoIDInvalid(t *testing.T) {
	invalid := []string{
		"",
		"acme!widgets",
		"gitlab-acme!widgets",
		"github-acme",
		"github-!widgets",
		"github-acme!",
		"github-acme!wid!gets",
		"github-acme!../etc",
		"github-..!widgets",
		"github-acme!a/b",
		"github-acme!a b",
		"github-acme!a\\b",
	}

	for _, in := range invalid {
		if _, err := ParseRepoID(in); !errors.Is(err, ErrInvalidRepoID) {
			t.Errorf("ParseRepoID(%q): got %v, want ErrInvalidRepoID", in, err)
		}
	}
}

func TestRepoIDCloneURL(t *testing.T) {
	id := RepoID{Forge: ForgeGitHub, Owner: "acme", Name: "widgets"}

	if got := id.CloneURL(""); got != "https://github.com/acme/widgets" {
		t.Errorf("default base: got %q", got)
	}
	if got := id.CloneURL("http://127.0.0.1:8080/git/"); got != "http://127.0.0.1:8080/git/acme/widgets" {
		t.Errorf("custom base: got %q", got)
	}
}

func TestParseCommit(t *testing.T) {
	valid := map[string]string{
		"abc1":     "abc1",
		"DEADBEEF": "deadbeef",
		"0123456789abcdef0123456789abcdef01234567":                         "0123456789abcdef0123456789abcdef01234567",
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef": "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}
	for in, want := range valid {
		got, err := ParseCommit(in)
		if err != nil {
			t.Errorf("ParseCommit(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseCommit(%q) = %q, want %q", in, got, want)
		}
	}

	invalid := []string{
		"",
		"abc",
		"master",
		"HEAD",
		"HEAD~1",
		"v1.0.0",
		"abc123^{commit}",
		" abc123",
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0",
	}
	for _, in := range invalid {
		if _, err := ParseCommit(in); !errors.Is(err, ErrInvalidCommit) {
			t.Errorf("ParseCommit(%q) = %v, want ErrInvalidCommit", in, err)
		}
	}
}
