package sqlite

import "database/sql"

// schema sets up the database. It runs on startup to ensure tables exist.
// split_entries keeps the split's order through position.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    household_id TEXT NOT NULL,
    date TEXT NOT NULL,
    week_label TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    cost_center TEXT NOT NULL DEFAULT '',
    amount INTEGER NOT NULL,
    conciliado INTEGER NOT NULL DEFAULT 0,
    payer_uid TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS split_entries (
    expense_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    uid_or_email TEXT NOT NULL,
    ratio REAL NOT NULL,
    PRIMARY KEY (expense_id, position),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS preferences (
    user_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, key)
);

CREATE INDEX IF NOT EXISTS idx_expenses_household_date ON expenses(household_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_split_entries_expense_id ON split_entries(expense_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
