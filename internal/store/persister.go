package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/vmform/internal/engine"
	"github.com/roach88/vmform/internal/ir"
)

// Canonicalizer rewrites values the way the server would before storing
// them. The result is what the form is rehydrated with.
type Canonicalizer func(ir.IRObject) ir.IRObject

// TrimStrings is a Canonicalizer that trims surrounding whitespace from
// every string, at any depth. Arrays are rebuilt element by element.
func TrimStrings(values ir.IRObject) ir.IRObject {
	return trimValue(values).(ir.IRObject)
}

func trimValue(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		return ir.IRString(strings.TrimSpace(string(val)))
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = trimValue(elem)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = trimValue(elem)
		}
		return out
	default:
		return v
	}
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithCanonicalizer sets the server-side rewrite applied before storing.
func WithCanonicalizer(c Canonicalizer) PersisterOption {
	return func(p *Persister) {
		p.canonicalize = c
	}
}

// WithPersisterLogger sets the logger. Default: slog.Default().
func WithPersisterLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = l
	}
}

// Persister is the engine.Persistence of one document backed by a Store.
//
// OnSave stores the merged values (minus the reserved id and revision
// keys), records the cycle, and returns the document's canonical values.
// Repeating a payload does not create a new revision.
type Persister struct {
	store        *Store
	documentID   string
	canonicalize Canonicalizer
	logger       *slog.Logger
}

var _ engine.Persistence = (*Persister)(nil)

// NewPersister creates a Persister for documentID.
func NewPersister(s *Store, documentID string, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:      s,
		documentID: documentID,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DocumentID returns the document this persister writes.
func (p *Persister) DocumentID() string {
	return p.documentID
}

// OnSave implements engine.Persistence.
func (p *Persister) OnSave(ctx context.Context, params engine.SaveParams) (ir.IRObject, error) {
	values := StripReserved(params.Merged)
	if p.canonicalize != nil {
		values = p.canonicalize(values)
	}

	payloadHash, err := ir.PayloadHash(params.Merged, params.Overrides)
	if err != nil {
		return nil, fmt.Errorf("payload hash: %w", err)
	}

	doc, err := p.store.SaveCycle(ctx, p.documentID, values, Cycle{
		ID:          params.CycleID,
		Seq:         params.Seq,
		PayloadHash: payloadHash,
		Merged:      params.Merged,
		Overrides:   params.Overrides,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("document saved",
		"document_id", p.documentID,
		"cycle_id", params.CycleID,
		"revision", doc.Revision,
		"fingerprint", formatFingerprint(doc.Fingerprint),
	)
	return doc.Canonical(), nil
}
