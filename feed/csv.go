// Package feed loads prepared quote files into an in-memory
// QuoteSource. Files are CSV, optionally xz-compressed (data
// pipelines ship daily tick dumps that way); the loader is the only
// place the engine touches the filesystem for market data.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/twquant/stocksim/market"
)

const (
	dayLayout  = "2006-01-02"
	tickLayout = "2006-01-02T15:04:05"
)

// LoadDaily reads a daily-bar CSV with header
//
//	date,stock_id,open,high,low,close,volume
//
// into a MemorySource. Volume is in shares.
func LoadDaily(path string) (*market.MemorySource, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	src := market.NewMemorySource()
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("feed: %s row %d: want 7 columns, got %d", path, i+2, len(row))
		}

		date, err := time.ParseInLocation(dayLayout, row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("feed: %s row %d: %w", path, i+2, err)
		}

		open, err1 := strconv.ParseFloat(row[2], 64)
		high, err2 := strconv.ParseFloat(row[3], 64)
		low, err3 := strconv.ParseFloat(row[4], 64)
		closeP, err4 := strconv.ParseFloat(row[5], 64)
		volume, err5 := strconv.ParseInt(row[6], 10, 64)
		if err := firstErr(err1, err2, err3, err4, err5); err != nil {
			return nil, fmt.Errorf("feed: %s row %d: %w", path, i+2, err)
		}

		src.AddDay(market.Quote{
			StockID: row[1],
			Scale:   market.ScaleDay,
			Date:    date,
			Cur:     closeP,
			Volume:  volume,
			Open:    open,
			High:    high,
			Low:     low,
			Close:   closeP,
		})
	}
	return src, nil
}

// LoadTicks reads a tick CSV with header
//
//	time,stock_id,price,volume,bid_price,bid_volume,ask_price,ask_volume,tick_type
//
// into a MemorySource. time is "2006-01-02T15:04:05" (UTC).
func LoadTicks(path string) (*market.MemorySource, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	src := market.NewMemorySource()
	for i, row := range rows {
		if len(row) < 9 {
			return nil, fmt.Errorf("feed: %s row %d: want 9 columns, got %d", path, i+2, len(row))
		}

		ts, err := time.ParseInLocation(tickLayout, row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("feed: %s row %d: %w", path, i+2, err)
		}

		price, err1 := strconv.ParseFloat(row[2], 64)
		volume, err2 := strconv.Atoi(row[3])
		bidPrice, err3 := strconv.ParseFloat(row[4], 64)
		bidVolume, err4 := strconv.Atoi(row[5])
		askPrice, err5 := strconv.ParseFloat(row[6], 64)
		askVolume, err6 := strconv.Atoi(row[7])
		tickType, err7 := strconv.Atoi(row[8])
		if err := firstErr(err1, err2, err3, err4, err5, err6, err7); err != nil {
			return nil, fmt.Errorf("feed: %s row %d: %w", path, i+2, err)
		}

		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		src.AddTicks(market.Quote{
			StockID: row[1],
			Scale:   market.ScaleTick,
			Date:    day,
			Cur:     price,
			Volume:  int64(volume),
			Tick: &market.TickQuote{
				Time:      ts,
				Price:     price,
				Volume:    volume,
				BidPrice:  bidPrice,
				BidVolume: bidVolume,
				AskPrice:  askPrice,
				AskVolume: askVolume,
				TickType:  tickType,
			},
		})
	}
	return src, nil
}

// readCSV opens the file (decompressing .xz transparently), skips
// the header row and returns the data rows.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".xz") {
		xzr, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("feed: open xz %s: %w", path, err)
		}
		reader = xzr
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("feed: %s is empty", path)
	}
	return rows[1:], nil // drop header
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
