package internal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blamelines (
    x_commit              TEXT NOT NULL,
    x_file_path           TEXT NOT NULL,
    x_line_number         INTEGER NOT NULL,
    original_commit       TEXT NOT NULL,
    original_file_path    TEXT NOT NULL,
    original_line_number  INTEGER NOT NULL,
    PRIMARY KEY (x_commit, x_file_path, x_line_number)
);
`

// SQLiteBlameStore keeps blame lines in a local SQLite file.
type SQLiteBlameStore struct {
	db *sql.DB
}

// OpenSQLiteBlameStore opens or creates the database at path.
func OpenSQLiteBlameStore(path string) (*SQLiteBlameStore, error) {
	if path == "" {
		return nil, storeErr("open sqlite", fmt.Errorf("cache.path is empty"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storeErr("create database directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, storeErr("open database", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, storeErr("apply schema", err)
	}

	return &SQLiteBlameStore{db: db}, nil
}

func (s *SQLiteBlameStore) Lookup(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x_line_number, original_commit, original_file_path, original_line_number
		FROM blamelines
		WHERE x_commit = ? AND x_file_path = ?
		ORDER BY x_line_number`,
		commit, filePath,
	)
	if err != nil {
		return nil, false, storeErr("query blamelines", err)
	}
	defer rows.Close()

	var found []blameRow
	for rows.Next() {
		var r blameRow
		if err := rows.Scan(&r.LineNumber, &r.OriginalCommit, &r.OriginalFilePath, &r.OriginalLineNumber); err != nil {
			return nil, false, storeErr("scan blameline", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, storeErr("iterate blamelines", err)
	}
	if len(found) == 0 {
		return nil, false, nil
	}

	lines, err := rowsToLines(found)
	if err != nil {
		return nil, false, err
	}
	return lines, true, nil
}

func (s *SQLiteBlameStore) Insert(ctx context.Context, commit, filePath string, lines []BlameLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO blamelines
		(x_commit, x_file_path, x_line_number, original_commit, original_file_path, original_line_number)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storeErr("prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range linesToRows(lines) {
		if _, err := stmt.ExecContext(ctx, commit, filePath, r.LineNumber, r.OriginalCommit, r.OriginalFilePath, r.OriginalLineNumber); err != nil {
			return storeErr("insert blameline", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *SQLiteBlameStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
