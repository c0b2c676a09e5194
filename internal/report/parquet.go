package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// SaveParquet writes one row per entry.
func SaveParquet(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Entry](file)
	if _, err := writer.Write(entries); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

// LoadParquet reads entries written by SaveParquet.
func LoadParquet(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet report opened", "path", path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[Entry](pf)
	defer reader.Close()

	entries, err := readEntries(reader, pf.NumRows())
	if err != nil {
		return entries, fmt.Errorf("failed to read parquet rows from %s: %w", path, err)
	}
	return entries, nil
}

type entryReader interface {
	Read(rows []Entry) (int, error)
}

// readEntries drains r in batches. Any error other than io.EOF is returned
// along with the rows read so far.
func readEntries(r entryReader, sizeHint int64) ([]Entry, error) {
	entries := make([]Entry, 0, sizeHint)
	rows := make([]Entry, 128)
	for {
		n, err := r.Read(rows)
		entries = append(entries, rows[:n]...)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
	}
}
