package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal persists trades and equity snapshots to a SQLite
// database, one file per run or many runs in one file; the engine
// does not care.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, position_id, stock_id, side, volume_lots, open_date, close_date,
		 open_price, close_price, commission, tax, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PositionID, t.StockID, t.Side, t.Volume, t.OpenDate, t.CloseDate,
		t.OpenPrice, t.ClosePrice, t.Commission, t.Tax, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, position_value, equity)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Balance, e.PositionValue, e.Equity,
	)
	return err
}

// GetTrade returns a single trade record by id.
func (j *SQLiteJournal) GetTrade(id string) (TradeRecord, error) {
	row := j.db.QueryRow(`
		SELECT id, position_id, stock_id, side, volume_lots, open_date, close_date,
		       open_price, close_price, commission, tax, realized_pl, reason
		FROM trades
		WHERE id = ?`, id)

	var rec TradeRecord
	err := scanTrade(row.Scan, &rec)
	if err == sql.ErrNoRows {
		return TradeRecord{}, fmt.Errorf("trade %q not found", id)
	}
	if err != nil {
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close_date falls in
// [start, end), ordered chronologically by close date.
func (j *SQLiteJournal) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, position_id, stock_id, side, volume_lots, open_date, close_date,
		       open_price, close_price, commission, tax, realized_pl, reason
		FROM trades
		WHERE close_date >= ? AND close_date < ?
		ORDER BY close_date ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := scanTrade(rows.Scan, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquityBetween returns the equity curve over [start, end).
func (j *SQLiteJournal) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, position_value, equity
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Balance, &e.PositionValue, &e.Equity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func scanTrade(scan func(...any) error, rec *TradeRecord) error {
	return scan(
		&rec.ID,
		&rec.PositionID,
		&rec.StockID,
		&rec.Side,
		&rec.Volume,
		&rec.OpenDate,
		&rec.CloseDate,
		&rec.OpenPrice,
		&rec.ClosePrice,
		&rec.Commission,
		&rec.Tax,
		&rec.RealizedPL,
		&rec.Reason,
	)
}
