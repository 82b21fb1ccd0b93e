package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/flowstate/pkg/api"
)

// SQLite stores journal records in a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ api.RecordJournal = (*SQLite)(nil)

// NewSQLite creates a SQLite journal on db, creating the schema if needed.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flowstate_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			store_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			variant TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '',
			event TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_flowstate_records_store_id ON flowstate_records(store_id, id);
	`)
	return err
}

func (s *SQLite) Append(ctx context.Context, r api.Record) error {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flowstate_records (store_id, at, type, variant, action, event, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.StoreID,
		at.UnixNano(),
		string(r.Type),
		r.Variant,
		r.Action,
		r.Event,
		r.Detail,
	)
	return err
}

// List returns the records appended for storeID, in append order.
func (s *SQLite) List(ctx context.Context, storeID string) ([]api.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, at, type, variant, action, event, detail
		FROM flowstate_records
		WHERE store_id = ?
		ORDER BY id ASC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Record
	for rows.Next() {
		var (
			id      string
			atN     int64
			typ     string
			variant string
			action  string
			event   string
			detail  string
		)
		if err := rows.Scan(&id, &atN, &typ, &variant, &action, &event, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.Record{
			StoreID: id,
			At:      time.Unix(0, atN),
			Type:    api.RecordType(typ),
			Variant: variant,
			Action:  action,
			Event:   event,
			Detail:  detail,
		})
	}
	return out, rows.Err()
}
