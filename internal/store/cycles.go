package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vmform/internal/ir"
)

// Cycle is one save cycle as recorded in the save_cycles log.
type Cycle struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	Seq         int64       `json:"seq"`
	PayloadHash string      `json:"payload_hash"`
	Merged      ir.IRObject `json:"merged"`
	Overrides   ir.IRObject `json:"overrides"`
	Revision    int64       `json:"revision"`
	Changed     bool        `json:"changed"`
}

// WriteCycle appends a cycle to the log.
// Uses ON CONFLICT(id) DO NOTHING: recording the same cycle twice is a no-op.
func (s *Store) WriteCycle(ctx context.Context, c Cycle) error {
	if err := writeCycle(ctx, s.db, c); err != nil {
		return fmt.Errorf("write cycle %s: %w", c.ID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeCycle(ctx context.Context, x execer, c Cycle) error {
	mergedJSON, err := marshalValues(c.Merged)
	if err != nil {
		return err
	}
	overridesJSON, err := marshalValues(c.Overrides)
	if err != nil {
		return err
	}

	_, err = x.ExecContext(ctx, `
		INSERT INTO save_cycles
		(id, document_id, seq, payload_hash, merged, overrides, revision, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.DocumentID,
		c.Seq,
		c.PayloadHash,
		mergedJSON,
		overridesJSON,
		c.Revision,
		c.Changed,
	)
	return err
}

// ListCycles returns the save history of a document.
// Ordered by seq ASC, id ASC COLLATE BINARY. Returns an empty slice, not
// nil, when the document has no history.
func (s *Store) ListCycles(ctx context.Context, documentID string) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, seq, payload_hash, merged, overrides, revision, changed
		FROM save_cycles
		WHERE document_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		var (
			c             Cycle
			mergedJSON    string
			overridesJSON string
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.PayloadHash,
			&mergedJSON, &overridesJSON, &c.Revision, &c.Changed); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if c.Merged, err = unmarshalValues(mergedJSON); err != nil {
			return nil, err
		}
		if c.Overrides, err = unmarshalValues(overridesJSON); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// SaveCycle writes values as the document's current state and records the
// cycle, in one transaction.
func (s *Store) SaveCycle(ctx context.Context, documentID string, values ir.IRObject, c Cycle) (Document, error) {
	var doc Document
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			changed bool
			err     error
		)
		doc, changed, err = writeDocument(ctx, tx, documentID, values)
		if err != nil {
			return err
		}
		c.DocumentID = documentID
		c.Revision = doc.Revision
		c.Changed = changed
		return writeCycle(ctx, tx, c)
	})
	if err != nil {
		return Document{}, fmt.Errorf("save cycle %s: %w", c.ID, err)
	}
	return doc, nil
}
