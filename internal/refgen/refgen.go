// Package refgen produces verified-unique reference identifiers for
// ledger transactions.
package refgen

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// refBytes yields a 12-character uppercase hex reference.
const refBytes = 6

// Store answers whether a candidate reference is already taken.
type Store interface {
	ReferenceExists(ctx context.Context, ref string) (bool, error)
}

// Generator samples high-entropy references and re-checks each against
// the store until an unused one is found. The contract is a
// verified-unique result, not a statistically-unique one.
type Generator struct {
	store Store
}

func New(store Store) *Generator {
	return &Generator{store: store}
}

// Generate returns a reference id that did not exist in the store at
// the time of the check.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for {
		buf := make([]byte, refBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("sampling reference: %w", err)
		}
		ref := strings.ToUpper(hex.EncodeToString(buf))

		exists, err := g.store.ReferenceExists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("checking reference %s: %w", ref, err)
		}
		if !exists {
			return ref, nil
		}
	}
}
