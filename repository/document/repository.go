package document

import (
	"context"

	types "github.com/reisap/rest-hapi/types/http"
)

// Repository is the minimal per-collection contract the usecases consume.
// Implementations must provide per-document atomic writes; nothing here
// guarantees atomicity across documents.
type Repository interface {
	// Find returns every document matching the query.
	Find(ctx context.Context, q Query) ([]Data, *types.CommonError)

	// FindOne returns the first match, or nil (without error) when no
	// document matches.
	FindOne(ctx context.Context, q Query) (Data, *types.CommonError)

	// Create persists a new document and returns it with its assigned id.
	Create(ctx context.Context, payload Data) (Data, *types.CommonError)

	// Update merges payload fields into the stored document. A nil field
	// value unsets that field. Returns nil (without error) when the id
	// does not exist.
	Update(ctx context.Context, id string, payload Data) (Data, *types.CommonError)

	// Remove deletes the document and returns its last persisted state,
	// or nil (without error) when the id does not exist.
	Remove(ctx context.Context, id string) (Data, *types.CommonError)
}

// Provider resolves the repository backing a named collection.
type Provider interface {
	Collection(name string) Repository
}

// Collections is a map-backed Provider.
type Collections map[string]Repository

func (c Collections) Collection(name string) Repository {
	return c[name]
}
