package cmd

import (
	"sync"

	"github.com/cropcare-connect/cropcare/internal/report"
)

// entryLog accumulates watch results and rewrites the Parquet report.
type entryLog struct {
	mu      sync.Mutex
	path    string
	entries []report.Entry
}

func newEntryLog(path string) *entryLog {
	return &entryLog{path: path}
}

func (l *entryLog) add(e report.Entry) error {
	if l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return report.SaveParquet(l.path, l.entries)
}
