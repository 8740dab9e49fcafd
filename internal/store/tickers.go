package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TickerEntry is one persisted tracked instrument. On disk it is the pair
// [symbol, name].
type TickerEntry struct {
	Symbol string
	Name   string
}

func (e TickerEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Symbol, e.Name})
}

// UnmarshalJSON accepts the [symbol, name] pair and the older bare symbol
// string, which leaves Name empty.
func (e *TickerEntry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("ticker entry: want [symbol, name], got %d elements", len(pair))
		}
		e.Symbol, e.Name = pair[0], pair[1]
		return nil
	}
	var symbol string
	if err := json.Unmarshal(data, &symbol); err != nil {
		return fmt.Errorf("ticker entry: %w", err)
	}
	e.Symbol, e.Name = symbol, ""
	return nil
}

// TickerFile is the JSON file holding the tracked ticker list. Every save
// rewrites the whole file; there is no locking between processes.
type TickerFile struct {
	path string
}

func NewTickerFile(path string) *TickerFile {
	return &TickerFile{path: path}
}

func (f *TickerFile) Path() string {
	return f.path
}

// Load reads the list. A missing or malformed file yields an empty list
// together with the reason, which callers are free to ignore.
func (f *TickerFile) Load() ([]TickerEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return []TickerEntry{}, fmt.Errorf("read tickers: %w", err)
	}
	var out []TickerEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return []TickerEntry{}, fmt.Errorf("parse tickers: %w", err)
	}
	if out == nil {
		out = []TickerEntry{}
	}
	return out, nil
}

func (f *TickerFile) Save(entries []TickerEntry) error {
	if entries == nil {
		entries = []TickerEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal tickers: %w", err)
	}
	_ = os.MkdirAll(filepath.Dir(f.path), 0o755)
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write tickers: %w", err)
	}
	return nil
}
