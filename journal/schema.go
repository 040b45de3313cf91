package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	stock_id TEXT NOT NULL,
	side TEXT NOT NULL,
	volume_lots INTEGER NOT NULL,
	open_date DATETIME NOT NULL,
	close_date DATETIME NOT NULL,
	open_price REAL NOT NULL,
	close_price REAL NOT NULL,
	commission REAL NOT NULL,
	tax REAL NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close_date ON trades(close_date);
CREATE INDEX IF NOT EXISTS idx_trades_position ON trades(position_id);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	position_value REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
