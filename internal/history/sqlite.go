package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "chat_history.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "migrate history db")
		}
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT prompt, response, chat FROM chat_history ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Prompt, &r.Response, &r.Chat); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (chat, prompt, response) VALUES (?, ?, ?)`,
		r.Chat, r.Prompt, r.Response,
	)
	return errors.Wrap(err, "insert history")
}

// idAt returns the row id of the index-th record.
func (s *SQLiteStore) idAt(ctx context.Context, index int) (int64, error) {
	if index < 0 {
		return 0, checkIndex(index, 0)
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM chat_history ORDER BY id ASC LIMIT 1 OFFSET ?`, index,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		var n int
		_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_history`).Scan(&n)
		return 0, checkIndex(index, n)
	}
	return id, errors.Wrap(err, "locate history record")
}

func (s *SQLiteStore) Get(ctx context.Context, index int) (Record, error) {
	id, err := s.idAt(ctx, index)
	if err != nil {
		return Record{}, err
	}
	var r Record
	err = s.db.QueryRowContext(ctx,
		`SELECT prompt, response, chat FROM chat_history WHERE id = ?`, id,
	).Scan(&r.Prompt, &r.Response, &r.Chat)
	return r, errors.Wrap(err, "read history record")
}

func (s *SQLiteStore) Delete(ctx context.Context, index int) error {
	id, err := s.idAt(ctx, index)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE id = ?`, id)
	return errors.Wrap(err, "delete history record")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
