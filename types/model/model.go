// Package model describes collections: their name, their relationships to
// other collections, and the optional hooks the CRUD engine invokes around
// persistence. Descriptors are plain values passed into every operation;
// there is no global registry of collections.
package model

import (
	"context"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

// Model describes one collection.
type Model struct {
	// Name is the collection name in the underlying store.
	Name string

	Associations []Association

	Hooks Hooks
}

// Association returns the named relationship descriptor.
func (m *Model) Association(name string) (Association, bool) {
	for _, a := range m.Associations {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Hooks are optional collection-specific extension points. A pre hook may
// transform its input or veto the operation; a post hook may transform the
// result. Hook failures surface as BAD_REQUEST.
type Hooks struct {
	// PreRead may rewrite the query before find and list.
	PreRead func(ctx context.Context, q document.Query) (document.Query, *types.CommonError)

	// PostRead runs on every returned document (find and each list element).
	PostRead func(ctx context.Context, d document.Data) (document.Data, *types.CommonError)

	PreCreate  func(ctx context.Context, payload document.Data) (document.Data, *types.CommonError)
	PostCreate func(ctx context.Context, created document.Data) (document.Data, *types.CommonError)

	PreUpdate  func(ctx context.Context, id string, payload document.Data) (document.Data, *types.CommonError)
	PostUpdate func(ctx context.Context, updated document.Data) (document.Data, *types.CommonError)

	// PreDelete may veto the whole delete. Association cleanup after a
	// delete is the collection's responsibility, via PostDelete.
	PreDelete  func(ctx context.Context, ids []string, hardDelete bool) *types.CommonError
	PostDelete func(ctx context.Context, deleted []document.Data) *types.CommonError
}

// Association is a tagged variant: OneToMany or ManyToMany. Each kind
// carries only the fields it needs.
type Association interface {
	// Name is the field on the owner document under which the
	// relationship appears.
	Name() string

	// Target is the child collection name.
	Target() string

	sealed()
}

// OneToMany is a virtual relationship: nothing is stored on the owner, the
// child carries a foreign-key field pointing at the owner.
type OneToMany struct {
	As           string
	TargetModel  string
	ForeignField string
}

func (a OneToMany) Name() string   { return a.As }
func (a OneToMany) Target() string { return a.TargetModel }
func (a OneToMany) sealed()        {}

// ManyToMany is stored as mirrored linking entries on both documents,
// optionally carrying extra fields declared by a linking model.
type ManyToMany struct {
	As           string
	TargetModel  string
	LinkingModel string

	// Reciprocal names the matching association on the child collection.
	// Optional when the child has exactly one many-to-many association
	// back to the owner; required to disambiguate when it has several.
	Reciprocal string
}

func (a ManyToMany) Name() string   { return a.As }
func (a ManyToMany) Target() string { return a.TargetModel }
func (a ManyToMany) sealed()        {}
