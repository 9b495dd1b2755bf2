package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Reserved keys added to canonical values returned to the form.
// They are stripped again before values are written.
const (
	KeyID       = "id"
	KeyRevision = "revision"
)

// Document is the stored state of one form.
type Document struct {
	ID           string
	Revision     int64
	Values       ir.IRObject
	SnapshotHash string
	Fingerprint  uint64
}

// Canonical returns the values the form should be rehydrated with: the
// stored values plus the reserved id and revision keys.
func (d Document) Canonical() ir.IRObject {
	out := ir.CloneObject(d.Values)
	out[KeyID] = ir.IRString(d.ID)
	out[KeyRevision] = ir.IRInt(d.Revision)
	return out
}

// NewDocumentID returns a fresh time-sortable document ID.
func NewDocumentID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// StripReserved returns a copy of values without the reserved keys.
func StripReserved(values ir.IRObject) ir.IRObject {
	out := ir.CloneObject(values)
	delete(out, KeyID)
	delete(out, KeyRevision)
	return out
}

// WriteDocument stores values as the current state of document id.
//
// Writing values equal to the stored ones is a no-op: the existing
// document is returned with changed=false and the revision is not bumped.
func (s *Store) WriteDocument(ctx context.Context, id string, values ir.IRObject) (doc Document, changed bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		doc, changed, err = writeDocument(ctx, tx, id, values)
		return err
	})
	if err != nil {
		return Document{}, false, fmt.Errorf("write document %s: %w", id, err)
	}
	return doc, changed, nil
}

func writeDocument(ctx context.Context, tx *sql.Tx, id string, values ir.IRObject) (Document, bool, error) {
	values = StripReserved(values)
	valuesJSON, err := marshalValues(values)
	if err != nil {
		return Document{}, false, err
	}
	hash, err := ir.SnapshotHash(values)
	if err != nil {
		return Document{}, false, err
	}
	fp := engine.Fingerprint(values)

	existing, err := readDocument(ctx, tx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		existing = Document{ID: id}
	case err != nil:
		return Document{}, false, err
	case existing.Fingerprint == fp && existing.SnapshotHash == hash:
		return existing, false, nil
	}

	doc := Document{
		ID:           id,
		Revision:     existing.Revision + 1,
		Values:       values,
		SnapshotHash: hash,
		Fingerprint:  fp,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents
		(id, revision, form_values, snapshot_hash, fingerprint, ir_version, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			revision = excluded.revision,
			form_values = excluded.form_values,
			snapshot_hash = excluded.snapshot_hash,
			fingerprint = excluded.fingerprint,
			ir_version = excluded.ir_version,
			engine_version = excluded.engine_version
	`,
		doc.ID,
		doc.Revision,
		valuesJSON,
		doc.SnapshotHash,
		formatFingerprint(doc.Fingerprint),
		ir.IRVersion,
		ir.EngineVersion,
	)
	if err != nil {
		return Document{}, false, fmt.Errorf("upsert: %w", err)
	}
	return doc, true, nil
}

// ReadDocument returns the stored document, or ErrNotFound.
func (s *Store) ReadDocument(ctx context.Context, id string) (Document, error) {
	doc, err := readDocument(ctx, s.db, id)
	if err != nil {
		return Document{}, fmt.Errorf("read document %s: %w", id, err)
	}
	return doc, nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readDocument(ctx context.Context, q queryRower, id string) (Document, error) {
	var (
		doc        Document
		valuesJSON string
		fpText     string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, revision, form_values, snapshot_hash, fingerprint
		FROM documents
		WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Revision, &valuesJSON, &doc.SnapshotHash, &fpText)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("scan document: %w", err)
	}

	doc.Values, err = unmarshalValues(valuesJSON)
	if err != nil {
		return Document{}, err
	}
	doc.Fingerprint, err = parseFingerprint(fpText)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}
