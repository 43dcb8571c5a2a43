package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"tradeguard/pkg/id"
)

// SQLite is an alternate journal backend for installs that want the
// event history queryable. Events are inserted in order and replayed
// by insertion order, so recovery semantics match the JSONL backend.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Append(ev Event) error {
	_, err := j.db.Exec(`
		INSERT INTO events
		(event_id, type, symbol, ts, side, qty, entry, tp, sl, reason, fill_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.New(), string(ev.Type), ev.Symbol, ev.TS, ev.Side,
		ev.Qty, ev.Entry, ev.TP, ev.SL, ev.Reason, ev.FillPrice,
	)
	return err
}

func (j *SQLite) Replay() ([]Event, error) {
	rows, err := j.db.Query(`
		SELECT type, symbol, ts, side, qty, entry, tp, sl, reason, fill_price
		FROM events ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var typ string
		if err := rows.Scan(&typ, &ev.Symbol, &ev.TS, &ev.Side,
			&ev.Qty, &ev.Entry, &ev.TP, &ev.SL, &ev.Reason, &ev.FillPrice); err != nil {
			return out, err
		}
		ev.Type = Type(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
