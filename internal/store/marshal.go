package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/vmform/internal/ir"
)

// marshalValues converts form values to canonical JSON TEXT for storage.
func marshalValues(values ir.IRObject) (string, error) {
	if values == nil {
		values = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses canonical JSON TEXT back into form values.
// Uses ir.IRObject.UnmarshalJSON, which decodes integers via json.Number
// so values above 2^53 keep their precision.
func unmarshalValues(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return obj, nil
}

// formatFingerprint renders a 64-bit fingerprint as 16 hex digits.
// SQLite INTEGER is signed, so the value is stored as TEXT.
func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

func parseFingerprint(s string) (uint64, error) {
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	return fp, nil
}
