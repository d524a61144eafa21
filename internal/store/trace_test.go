package store

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/facefit/internal/fit"
)

func TestTraceWriteAndRead(t *testing.T) {
	s, _ := setupTestStore(t)

	tw, err := s.OpenTrace("job-1", false)
	if err != nil {
		t.Fatalf("OpenTrace failed: %v", err)
	}
	params := fit.DefaultParamVector(2)
	for loop, cost := range []float64{0.5, 0.25, math.Inf(1)} {
		p := fit.Progress{Method: fit.MethodGradient, Loop: loop, Cost: cost, Params: params, Renders: 10 * loop}
		if err := tw.Write(NewTraceEntry(p, loop == 0)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := s.ReadTrace("job-1")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[1].Cost == nil || *entries[1].Cost != 0.25 || entries[1].Renders != 10 {
		t.Errorf("Unexpected second entry %+v", entries[1])
	}
	if entries[2].Cost != nil {
		t.Errorf("Expected nil cost for infinite loop cost, got %v", *entries[2].Cost)
	}
	if len(entries[0].Params) != params.Len() {
		t.Errorf("Expected %d params in first entry, got %d", params.Len(), len(entries[0].Params))
	}
	if entries[1].Params != nil {
		t.Errorf("Expected params omitted, got %v", entries[1].Params)
	}
}

func TestTraceAppend(t *testing.T) {
	s, _ := setupTestStore(t)

	for i := 0; i < 2; i++ {
		tw, err := s.OpenTrace("job-1", true)
		if err != nil {
			t.Fatalf("OpenTrace failed: %v", err)
		}
		tw.Write(NewTraceEntry(fit.Progress{Loop: i, Cost: 1}, false))
		if err := tw.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		tw.Close()
	}

	entries, err := s.ReadTrace("job-1")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries after append, got %d", len(entries))
	}

	// truncating open starts over
	tw, _ := s.OpenTrace("job-1", false)
	tw.Close()
	entries, _ = s.ReadTrace("job-1")
	if len(entries) != 0 {
		t.Errorf("Expected empty trace after truncation, got %d", len(entries))
	}
}

func TestReadTraceMissing(t *testing.T) {
	s, _ := setupTestStore(t)
	if _, err := s.ReadTrace("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReadTraceEntriesMalformed(t *testing.T) {
	input := `{"loop":0,"cost":1}` + "\n\n" + `{"loop":`
	_, err := ReadTraceEntries(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("Expected decode error on line 3, got %v", err)
	}
}
