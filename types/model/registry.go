package model

import (
	types "github.com/reisap/rest-hapi/types/http"
)

// Registry holds a set of collection descriptors with every many-to-many
// reciprocal resolved up front, so operations never scan descriptors at
// request time.
type Registry struct {
	models     map[string]*Model
	reciprocal map[registryKey]ManyToMany
}

type registryKey struct {
	model       string
	association string
}

// NewRegistry validates the descriptors and resolves each many-to-many
// association to its reciprocal on the child collection. Construction fails
// when a reciprocal is missing, or when an owner has several many-to-many
// associations to the same child and no explicit Reciprocal name to tell
// them apart.
func NewRegistry(models ...*Model) (*Registry, *types.CommonError) {
	r := &Registry{
		models:     make(map[string]*Model, len(models)),
		reciprocal: make(map[registryKey]ManyToMany),
	}

	for _, m := range models {
		if m.Name == "" {
			return nil, types.NewError(types.KindInternal, "collection descriptor without a name")
		}
		if _, dup := r.models[m.Name]; dup {
			return nil, types.NewError(types.KindInternal, "duplicate collection descriptor '"+m.Name+"'")
		}
		r.models[m.Name] = m
	}

	for _, m := range models {
		for _, a := range m.Associations {
			child, ok := r.models[a.Target()]
			if !ok {
				return nil, types.NewError(types.KindInternal,
					"association '"+a.Name()+"' on '"+m.Name+"' targets unknown collection '"+a.Target()+"'")
			}

			mm, isMany := a.(ManyToMany)
			if !isMany {
				continue
			}

			rec, err := resolveReciprocal(m, mm, child)
			if err != nil {
				return nil, err
			}
			r.reciprocal[registryKey{m.Name, mm.As}] = rec
		}
	}

	return r, nil
}

func resolveReciprocal(owner *Model, a ManyToMany, child *Model) (ManyToMany, *types.CommonError) {
	if a.Reciprocal != "" {
		named, ok := child.Association(a.Reciprocal)
		if !ok {
			return ManyToMany{}, types.NewError(types.KindInternal,
				"association '"+a.As+"' on '"+owner.Name+"': reciprocal '"+a.Reciprocal+"' does not exist on '"+child.Name+"'")
		}
		rec, ok := named.(ManyToMany)
		if !ok || rec.TargetModel != owner.Name {
			return ManyToMany{}, types.NewError(types.KindInternal,
				"association '"+a.As+"' on '"+owner.Name+"': reciprocal '"+a.Reciprocal+"' on '"+child.Name+"' does not point back")
		}
		return rec, nil
	}

	var found []ManyToMany
	for _, ca := range child.Associations {
		if rec, ok := ca.(ManyToMany); ok && rec.TargetModel == owner.Name {
			found = append(found, rec)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return ManyToMany{}, types.NewError(types.KindInternal,
			"association '"+a.As+"' on '"+owner.Name+"' does not exist on '"+child.Name+"'")
	default:
		return ManyToMany{}, types.NewError(types.KindInternal,
			"association '"+a.As+"' on '"+owner.Name+"' is ambiguous: '"+child.Name+"' has multiple associations back, set Reciprocal")
	}
}

// Model returns the descriptor for a collection name.
func (r *Registry) Model(name string) (*Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Reciprocal returns the child-side descriptor mirroring the named
// many-to-many association on the owner.
func (r *Registry) Reciprocal(ownerModel, association string) (ManyToMany, bool) {
	rec, ok := r.reciprocal[registryKey{ownerModel, association}]
	return rec, ok
}
