package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Money columns are TEXT holding decimal strings; REAL would lose the exact
// sum invariants the engine depends on.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS currencies (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    symbol TEXT NOT NULL,
    is_crypto INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS conversion_rates (
    id TEXT PRIMARY KEY,
    from_currency_id TEXT NOT NULL,
    to_currency_id TEXT NOT NULL,
    rate TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    source TEXT NOT NULL,
    FOREIGN KEY (from_currency_id) REFERENCES currencies(id),
    FOREIGN KEY (to_currency_id) REFERENCES currencies(id)
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    total_amount TEXT NOT NULL,
    currency_id TEXT NOT NULL,
    payer_user_id TEXT NOT NULL,
    group_id TEXT,
    is_settled INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (currency_id) REFERENCES currencies(id),
    FOREIGN KEY (payer_user_id) REFERENCES users(id),
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    amount TEXT NOT NULL,
    currency_id TEXT NOT NULL,
    description TEXT,
    created_by_user_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (currency_id) REFERENCES currencies(id),
    FOREIGN KEY (created_by_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS expense_participants (
    id TEXT PRIMARY KEY,
    expense_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    share_amount TEXT NOT NULL,
    settled_transaction_id TEXT,
    settled_amount_in_transaction_currency TEXT,
    settled_with_conversion_rate_id TEXT,
    settled_at_conversion_timestamp INTEGER,
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (settled_transaction_id) REFERENCES transactions(id),
    FOREIGN KEY (settled_with_conversion_rate_id) REFERENCES conversion_rates(id)
);

CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id);
CREATE INDEX IF NOT EXISTS idx_expenses_payer_user_id ON expenses(payer_user_id);
CREATE INDEX IF NOT EXISTS idx_participants_expense_id ON expense_participants(expense_id);
CREATE INDEX IF NOT EXISTS idx_participants_user_id ON expense_participants(user_id);
CREATE INDEX IF NOT EXISTS idx_participants_settled_txn ON expense_participants(settled_transaction_id);
CREATE INDEX IF NOT EXISTS idx_rates_currency_pair ON conversion_rates(from_currency_id, to_currency_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
