// Package reference persists the single Election Reference. Every backend
// offers the same versioned compare-and-swap so that concurrent lifecycle
// commands and reconciliation write-backs cannot overwrite each other.
package reference

import (
	"context"
	"encoding/json"
	"fmt"

	"electa/internal/election/models"
)

// Store is the reference key-value contract.
//
// Get returns models.NullReference with Version 0 when nothing is stored.
// CompareAndSwap writes next with Version expected+1 only if the stored
// version equals expected, else it returns sentinel.ErrConflict.
type Store interface {
	Get(ctx context.Context) (models.Reference, error)
	CompareAndSwap(ctx context.Context, expected int64, next models.Reference) (models.Reference, error)
}

const storageKey = "electa:election:reference"

func encode(ref models.Reference) ([]byte, error) {
	b, err := json.Marshal(ref)
	if err != nil {
		return nil, fmt.Errorf("encode reference: %w", err)
	}
	return b, nil
}

func decode(b []byte) (models.Reference, error) {
	if len(b) == 0 {
		return models.NullReference(), nil
	}
	var ref models.Reference
	if err := json.Unmarshal(b, &ref); err != nil {
		return models.Reference{}, fmt.Errorf("decode reference: %w", err)
	}
	return ref, nil
}
