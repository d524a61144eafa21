package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/cwbudde/facefit/internal/fit"
)

// TraceEntry is one line of trace.jsonl, written once per completed loop
type TraceEntry struct {
	Loop    int `json:"loop"`
	Renders int `json:"renders"`

	// Cost is nil when the loop's face did not cover any pixel
	Cost *float64 `json:"cost"`

	Timestamp time.Time `json:"timestamp"`

	// Params is the flat parameter layout (coefficients, ambient, directed)
	Params []float64 `json:"params,omitempty"`
}

// NewTraceEntry converts a progress report into a trace line
func NewTraceEntry(p fit.Progress, withParams bool) TraceEntry {
	entry := TraceEntry{
		Loop:      p.Loop,
		Renders:   p.Renders,
		Timestamp: time.Now(),
	}
	if !math.IsInf(p.Cost, 0) && !math.IsNaN(p.Cost) {
		cost := p.Cost
		entry.Cost = &cost
	}
	if withParams {
		entry.Params = p.Params.Array()
	}
	return entry
}

// TraceWriter appends JSON lines through a buffer; safe for concurrent use
type TraceWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	path string
}

func newTraceWriter(file *os.File, path string) *TraceWriter {
	buf := bufio.NewWriterSize(file, 64*1024)
	return &TraceWriter{
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf),
		path: path,
	}
}

// Write buffers one entry
func (tw *TraceWriter) Write(entry TraceEntry) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if err := tw.enc.Encode(entry); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	return nil
}

// Flush pushes buffered entries to disk
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if err := tw.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes and closes the file
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if err := tw.buf.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the trace file location
func (tw *TraceWriter) Path() string {
	return tw.path
}

// ReadTraceEntries decodes JSON lines until EOF
func ReadTraceEntries(r io.Reader) ([]TraceEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []TraceEntry
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry TraceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode trace line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan trace: %w", err)
	}
	return entries, nil
}
