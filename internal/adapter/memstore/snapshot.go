package memstore

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"slices"

	"github.com/dolmen-go/contextio"
	"github.com/seamdb/seam/pkg/doc"
)

// snapshotLine is one record of the newline-delimited JSON snapshot format.
type snapshotLine struct {
	Collection string `json:"collection"`
	Doc        doc.M  `json:"doc"`
}

// Snapshot streams the whole store to w as newline-delimited JSON, one
// document per line, collections in name order. The write honors ctx
// cancellation.
func (s *Store) Snapshot(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	names := slices.Sorted(maps.Keys(s.collections))
	cols := make([]*Collection, len(names))
	for n, name := range names {
		cols[n] = s.collections[name]
	}
	s.mu.Unlock()

	enc := json.NewEncoder(contextio.NewWriter(ctx, w))
	for n, col := range cols {
		col.mu.RLock()
		docs := col.docs.Clone()
		col.mu.RUnlock()
		for _, d := range docs {
			if err := enc.Encode(snapshotLine{Collection: names[n], Doc: d}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Restore loads a snapshot produced by [Store.Snapshot] into the store,
// replaying documents through the unique indexes of their collections.
func (s *Store) Restore(ctx context.Context, r io.Reader) error {
	dec := json.NewDecoder(contextio.NewReader(ctx, r))
	for {
		var line snapshotLine
		if err := dec.Decode(&line); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := s.insertRaw(line.Collection, line.Doc); err != nil {
			return err
		}
	}
}
