package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// PathFilter decides which file paths are never blamed. Patterns use
// .gitignore syntax and later patterns win, so "!keep.min.js" can undo an
// earlier "*.min.js".
type PathFilter struct {
	matcher gitignore.Matcher
}

func NewPathFilter(patterns []string) *PathFilter {
	var ps []gitignore.Pattern
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	if len(ps) == 0 {
		return &PathFilter{}
	}
	return &PathFilter{matcher: gitignore.NewMatcher(ps)}
}

// LoadPathFilter reads patterns from an ignore file, one per line, and
// appends them to extra. A missing file only yields extra.
func LoadPathFilter(file string, extra []string) (*PathFilter, error) {
	f, err := os.Open(file)
	if os.IsNotExist(err) {
		return NewPathFilter(extra), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ignore file: %w", err)
	}
	defer f.Close()

	patterns, err := readPatterns(f)
	if err != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", file, err)
	}
	return NewPathFilter(append(append([]string{}, extra...), patterns...)), nil
}

func readPatterns(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// Excluded reports whether filePath, a slash separated path relative to the
// repository root, matches the filter.
func (f *PathFilter) Excluded(filePath string) bool {
	if f == nil || f.matcher == nil {
		return false
	}
	clean := strings.TrimPrefix(path.Clean("/"+filePath), "/")
	if clean == "" {
		return false
	}
	return f.matcher.Match(strings.Split(clean, "/"), false)
}
