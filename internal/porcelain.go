package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsePorcelain reads `git blame --porcelain` output into hunks.
//
// Every blamed line gets a "<sha> <orig> <final>" header; the first line of
// a group adds the group size as a fourth field. Commit details, including
// "filename", are printed only the first time a commit shows up, so the
// filename is remembered per commit.
func ParsePorcelain(r io.Reader) ([]Hunk, error) {
	br := bufio.NewReader(r)
	filenames := make(map[string]string)

	var (
		hunks   []Hunk
		cur     *Hunk
		content int
		lineNo  int
	)

	flush := func() error {
		if cur == nil {
			return nil
		}
		if content != cur.Lines {
			return fmt.Errorf("hunk at line %d of %s: header says %d lines, got %d", cur.FinalStart, cur.Commit, cur.Lines, content)
		}
		if cur.Path == "" {
			cur.Path = filenames[cur.Commit]
		}
		hunks = append(hunks, *cur)
		cur, content = nil, 0
		return nil
	}

	for {
		raw, err := br.ReadString('\n')
		if raw == "" && errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read porcelain: %w", err)
		}
		lineNo++
		line := strings.TrimSuffix(raw, "\n")

		switch {
		case strings.HasPrefix(line, "\t"):
			if cur == nil {
				return nil, fmt.Errorf("porcelain line %d: content before header", lineNo)
			}
			content++

		case isHeader(line):
			fields := strings.Fields(line)
			if len(fields) == 3 {
				if cur == nil || fields[0] != cur.Commit {
					return nil, fmt.Errorf("porcelain line %d: continuation header outside its group", lineNo)
				}
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
			orig, err1 := strconv.Atoi(fields[1])
			final, err2 := strconv.Atoi(fields[2])
			n, err3 := strconv.Atoi(fields[3])
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("porcelain line %d: %w", lineNo, err)
			}
			cur = &Hunk{
				Commit:     fields[0],
				Path:       filenames[fields[0]],
				OrigStart:  orig,
				FinalStart: final,
				Lines:      n,
			}

		case strings.HasPrefix(line, "filename "):
			if cur == nil {
				return nil, fmt.Errorf("porcelain line %d: filename before header", lineNo)
			}
			name, err := unquotePath(strings.TrimPrefix(line, "filename "))
			if err != nil {
				return nil, fmt.Errorf("porcelain line %d: %w", lineNo, err)
			}
			filenames[cur.Commit] = name
			cur.Path = name
		}

		if errors.Is(err, io.EOF) {
			break
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return hunks, nil
}

// isHeader matches "<40 or 64 hex> <n> <n>[ <n>]".
func isHeader(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 3 && len(fields) != 4 {
		return false
	}
	if l := len(fields[0]); l != 40 && l != 64 {
		return false
	}
	for _, c := range fields[0] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	for _, f := range fields[1:] {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}

// unquotePath undoes git's C-style quoting of unusual path names.
func unquotePath(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	p, err := strconv.Unquote(s)
	if err != nil {
		return "", fmt.Errorf("unquote path %s: %w", s, err)
	}
	return p, nil
}
