package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
)

const postgresConnectTimeout = 30 * time.Second

const postgresSchema = `
CREATE TABLE IF NOT EXISTS blamelines (
    x_commit              TEXT NOT NULL,
    x_file_path           TEXT NOT NULL,
    x_line_number         INT NOT NULL,
    original_commit       TEXT NOT NULL,
    original_file_path    TEXT NOT NULL,
    original_line_number  INT NOT NULL,
    PRIMARY KEY (x_commit, x_file_path, x_line_number)
);
`

// PostgresBlameStore shares blame lines between instances through a
// Postgres table.
type PostgresBlameStore struct {
	db *pgxpool.Pool
}

// OpenPostgresBlameStore connects to dsn, waiting with exponential backoff
// for the database to come up, and creates the table if needed.
func OpenPostgresBlameStore(ctx context.Context, dsn string, log *logrus.Logger) (*PostgresBlameStore, error) {
	if dsn == "" {
		return nil, storeErr("open postgres", fmt.Errorf("cache.dsn is empty"))
	}
	if log == nil {
		log = logrus.New()
	}

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, storeErr("connect postgres", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = postgresConnectTimeout
	ping := func() error {
		return pool.Ping(ctx)
	}
	notify := func(err error, d time.Duration) {
		log.WithError(err).WithField("retry_in", d).Warn("postgres not ready")
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		pool.Close()
		return nil, storeErr("ping postgres", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storeErr("apply schema", err)
	}

	return &PostgresBlameStore{db: pool}, nil
}

func (s *PostgresBlameStore) Lookup(ctx context.Context, commit, filePath string) ([]BlameLine, bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT x_line_number, original_commit, original_file_path, original_line_number
		FROM blamelines
		WHERE x_commit = $1 AND x_file_path = $2
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

func (s *PostgresBlameStore) Insert(ctx context.Context, commit, filePath string, lines []BlameLine) error {
	err := s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range linesToRows(lines) {
			batch.Queue(`
				INSERT INTO blamelines
				(x_commit, x_file_path, x_line_number, original_commit, original_file_path, original_line_number)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT DO NOTHING`,
				commit, filePath, r.LineNumber, r.OriginalCommit, r.OriginalFilePath, r.OriginalLineNumber)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return storeErr("insert blamelines", err)
	}
	return nil
}

func (s *PostgresBlameStore) Close() error {
	s.db.Close()
	return nil
}
