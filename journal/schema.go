package journal

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	ts REAL NOT NULL,
	side TEXT NOT NULL DEFAULT '',
	qty REAL NOT NULL DEFAULT 0,
	entry REAL NOT NULL DEFAULT 0,
	tp REAL NOT NULL DEFAULT 0,
	sl REAL NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	fill_price REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_symbol ON events(symbol);
`
