// Package memory is an in-process EntryWriter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kmbot/internal/core"
	ports "kmbot/internal/sheets"
)

var _ ports.EntryWriter = (*Writer)(nil)

type Writer struct {
	mu    sync.Mutex
	rides [][]any
	fuels [][]any
	fail  error
}

func New() *Writer { return &Writer{} }

// FailWith makes every following append return err. Nil restores normal behaviour.
func (w *Writer) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail = err
}

func (w *Writer) AppendRide(_ context.Context, e core.RideEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return "", w.fail
	}
	w.rides = append(w.rides, ports.RideRow(e))
	return fmt.Sprintf("mem:rides:%d", len(w.rides)), nil
}

func (w *Writer) AppendFuel(_ context.Context, e core.FuelEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return "", w.fail
	}
	w.fuels = append(w.fuels, ports.FuelRow(e))
	return fmt.Sprintf("mem:fuels:%d", len(w.fuels)), nil
}

// Rows returns copies of the rows written so far.
func (w *Writer) Rows() (rides, fuels [][]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]any(nil), w.rides...), append([][]any(nil), w.fuels...)
}
