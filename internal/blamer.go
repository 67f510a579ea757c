package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type Blamer struct {
	vcs VCS
	log *logrus.Logger
}

func NewBlamer(vcs VCS, log *logrus.Logger) *Blamer {
	if log == nil {
		log = logrus.New()
	}
	return &Blamer{vcs: vcs, log: log}
}

// Compute blames filePath as of commit and returns one BlameLine per line
// of the file, in destination order. Any inconsistency between the hunks
// and the file fails the whole computation.
func (b *Blamer) Compute(ctx context.Context, m *Mirror, commit, filePath string) ([]BlameLine, error) {
	log := b.log.WithFields(logrus.Fields{"repo": m.ID.String(), "commit": commit, "path": filePath})
	start := time.Now()

	hunks, err := b.vcs.Blame(ctx, m.Path, filePath, commit)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %s: %w", ErrBlameFailed, filePath, commit, err)
	}

	lines, err := ExpandHunks(hunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %s: %w", ErrBlameFailed, filePath, commit, err)
	}

	want, err := b.vcs.FileLines(ctx, m.Path, commit, filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: count lines of %s at %s: %w", ErrBlameFailed, filePath, commit, err)
	}
	if len(lines) != want {
		return nil, fmt.Errorf("%w: %s at %s: blame has %d lines, file has %d", ErrBlameFailed, filePath, commit, len(lines), want)
	}

	log.WithFields(logrus.Fields{
		"hunks": len(hunks),
		"lines": len(lines),
		"took":  time.Since(start).Round(time.Millisecond),
	}).Debug("blame computed")

	return lines, nil
}

// ExpandHunks turns hunks into per-line records. Hunks must tile the file
// from destination line 1 without gaps.
func ExpandHunks(hunks []Hunk) ([]BlameLine, error) {
	total := 0
	for _, h := range hunks {
		total += h.Lines
	}

	lines := make([]BlameLine, 0, total)
	for i, h := range hunks {
		if h.Path == "" {
			return nil, fmt.Errorf("hunk %d (%s): no source path", i, h.Commit)
		}
		if h.Lines <= 0 {
			return nil, fmt.Errorf("hunk %d (%s): %d lines", i, h.Commit, h.Lines)
		}
		if h.FinalStart != len(lines)+1 {
			return nil, fmt.Errorf("hunk %d (%s): starts at line %d, want %d", i, h.Commit, h.FinalStart, len(lines)+1)
		}

		for off := 0; off < h.Lines; off++ {
			lines = append(lines, BlameLine{
				OriginalCommit:     h.Commit,
				OriginalFilePath:   h.Path,
				OriginalLineNumber: h.OrigStart + off,
			})
		}
	}
	return lines, nil
}
