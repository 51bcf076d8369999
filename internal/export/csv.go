package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgnsrekt/oi-scalper/internal/session"
)

// Header lists the CSV columns, one per record field.
var Header = []string{
	"timestamp", "expiry", "spot", "ema", "rsi", "net_change", "oi_slope",
	"trend", "momentum", "buildup", "signal", "advisory", "gamma_advisory",
	"call_wall", "put_wall", "suggestion", "suggested_strike",
}

// WriteCSV writes the header and one row per record, in the given order.
func WriteCSV(w io.Writer, records []session.DecisionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Timestamp.Format(time.RFC3339),
			r.Expiry,
			Fixed(r.Spot, 2),
			Fixed(r.EMA, 2),
			Fixed(r.RSI, 2),
			strconv.FormatInt(r.NetChange, 10),
			strconv.FormatInt(r.OISlope, 10),
			string(r.Trend),
			string(r.Momentum),
			string(r.Buildup),
			string(r.Signal),
			r.Advisory,
			r.GammaAdvisory,
			Fixed(r.CallWall, 0),
			Fixed(r.PutWall, 0),
			r.Suggestion,
			strike(r.Strike),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func strike(v float64) string {
	if v == 0 {
		return ""
	}
	return Fixed(v, 0)
}

// WriteFile writes the log to path through a temp file and an atomic rename.
func WriteFile(path string, records []session.DecisionRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	err = WriteCSV(f, records)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing csv: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
