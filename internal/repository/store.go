package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"daily-driver/internal/model"
)

// ErrNotFound is returned when no document exists for the user.
var ErrNotFound = errors.New("document not found")

// Fields maps top-level document field names to values. Values are stored as JSON.
type Fields map[string]any

// DocumentStore is the remote per-user document store the sync core writes to.
// Writes are last-write-wins; no method reads and writes across documents.
type DocumentStore interface {
	// Get returns every top-level field of the user's document.
	Get(ctx context.Context, userID string) (model.RawDocument, error)
	// SetMerge shallow-merges fields into the document, creating it if needed.
	SetMerge(ctx context.Context, userID string, fields Fields) error
	// UpdateFields overwrites the named fields in one atomic write. The document must exist.
	UpdateFields(ctx context.Context, userID string, fields Fields) error
	// AppendUnique appends value to an array field unless an equal value is already there.
	// The document must exist.
	AppendUnique(ctx context.Context, userID, field string, value any) error
}

func encodeFields(fields Fields) (map[string][]byte, error) {
	out := make(map[string][]byte, len(fields))
	for name, value := range fields {
		if name == "" {
			return nil, errors.New("empty field name")
		}
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// appendUnique decodes an array field, appends item unless present, and re-encodes it.
// changed is false when the value was already in the array.
func appendUnique(current []byte, item []byte) (next []byte, changed bool, err error) {
	var elems []json.RawMessage
	if len(current) > 0 && !bytes.Equal(current, []byte("null")) {
		if err := json.Unmarshal(current, &elems); err != nil {
			return nil, false, fmt.Errorf("field is not an array: %w", err)
		}
	}
	want, err := canonicalJSON(item)
	if err != nil {
		return nil, false, err
	}
	for _, e := range elems {
		got, err := canonicalJSON(e)
		if err != nil {
			return nil, false, err
		}
		if bytes.Equal(got, want) {
			return current, false, nil
		}
	}
	elems = append(elems, json.RawMessage(item))
	next, err = json.Marshal(elems)
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}

// canonicalJSON re-encodes b so equal values compare byte-equal (object keys sorted).
func canonicalJSON(b []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
