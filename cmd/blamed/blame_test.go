package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/4thel00z/blamed/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCommit = "0123456789abcdef0123456789abcdef01234567"

// cachedUseCase returns a use case whose store already holds a blame for
// README.md at testCommit, so no mirror is touched.
func cachedUseCase(t *testing.T) *internal.CalculateBlameLinesUseCase {
	t.Helper()

	store, err := internal.NewLRUBlameStore(16, nil)
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), testCommit, "README.md", []internal.BlameLine{
		{OriginalCommit: testCommit, OriginalFilePath: "README.md", OriginalLineNumber: 1},
		{OriginalCommit: testCommit, OriginalFilePath: "docs/README", OriginalLineNumber: 7},
	}))

	return internal.NewCalculateBlameLinesUseCase(store, nil, nil, nil, nil, nil, nil, nil)
}

func TestBlameCmdPrintsLines(t *testing.T) {
	uc := cachedUseCase(t)

	root := withRoot(NewBlameCmd(func() *internal.CalculateBlameLinesUseCase { return uc }))
	root.SetArgs([]string{"blame", "github-octo!hello", testCommit, "README.md"})

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)

	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "0123456789ab")
	assert.Contains(t, lines[0], "README.md:1")
	assert.Contains(t, lines[1], "docs/README:7")
	assert.Contains(t, errOut.String(), "(cached)")
}

func TestBlameCmdJSON(t *testing.T) {
	uc := cachedUseCase(t)

	root := withRoot(NewBlameCmd(func() *internal.CalculateBlameLinesUseCase { return uc }))
	root.SetArgs([]string{"blame", "github-octo!hello", testCommit, "README.md", "--json"})

	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, root.Execute())

	var got struct {
		CacheHit bool                 `json:"cache_hit"`
		Lines    []internal.BlameLine `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.CacheHit)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, 7, got.Lines[1].OriginalLineNumber)
}

func TestBlameCmdInvalidRepoID(t *testing.T) {
	store, err := internal.NewLRUBlameStore(16, nil)
	require.NoError(t, err)
	uc := internal.NewCalculateBlameLinesUseCase(store, nil, nil, nil, nil, nil, nil, nil)

	root := withRoot(NewBlameCmd(func() *internal.CalculateBlameLinesUseCase { return uc }))
	root.SetArgs([]string{"blame", "not-a-repo", testCommit, "README.md"})
	root.SetOut(&bytes.Buffer{})

	err = root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, internal.ErrInvalidRepoID)
}

func TestBlameCmdRequiresArgs(t *testing.T) {
	root := withRoot(NewBlameCmd(func() *internal.CalculateBlameLinesUseCase { return nil }))
	root.SetArgs([]string{"blame", "github-octo!hello"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	assert.Error(t, root.Execute())
}
