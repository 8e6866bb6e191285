// Package crud implements the generic list/find/create/update/delete engine
// every collection shares. Each operation runs the collection's optional pre
// hook, the persistence call, then the optional post hook; nothing in here
// is specific to any one collection.
package crud

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reisap/rest-hapi/config"
	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
	"github.com/reisap/rest-hapi/types/model"
)

// Timestamp and soft-delete fields stamped by the engine when enabled.
const (
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
	IsDeletedField = "isDeleted"
	DeletedAtField = "deletedAt"
)

type Engine struct {
	registry *model.Registry
	provider document.Provider
	opts     config.Options
}

func New(registry *model.Registry, provider document.Provider, opts config.Options) *Engine {
	return &Engine{
		registry: registry,
		provider: provider,
		opts:     opts,
	}
}

// Options returns the engine's behavior switches.
func (e *Engine) Options() config.Options {
	return e.opts
}

// Repository resolves the repository backing a collection descriptor.
func (e *Engine) Repository(m *model.Model) (document.Repository, *types.CommonError) {
	repo := e.provider.Collection(m.Name)
	if repo == nil {
		return nil, types.NewError(types.KindInternal, "no repository registered for collection '"+m.Name+"'")
	}
	return repo, nil
}

// List returns every matching document. Soft-deleted documents are excluded
// unless the caller filters on the deletion flag explicitly. Association
// names in embed are materialized onto each result.
func (e *Engine) List(ctx context.Context, m *model.Model, q document.Query, embed []string) ([]document.Data, *types.CommonError) {
	repo, err := e.Repository(m)
	if err != nil {
		return nil, err
	}

	if m.Hooks.PreRead != nil {
		q, err = m.Hooks.PreRead(ctx, q)
		if err != nil {
			return nil, err
		}
	}
	q = e.excludeDeleted(q)

	docs, err := repo.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	for i, d := range docs {
		d.WithID(d.ID())
		if err := e.attachEmbeds(ctx, m, d, embed); err != nil {
			return nil, err
		}
		if m.Hooks.PostRead != nil {
			d, err = m.Hooks.PostRead(ctx, d)
			if err != nil {
				return nil, err
			}
		}
		docs[i] = d
	}

	return docs, nil
}

// Find returns one document by id, or NOT_FOUND.
func (e *Engine) Find(ctx context.Context, m *model.Model, id string, embed []string) (document.Data, *types.CommonError) {
	repo, err := e.Repository(m)
	if err != nil {
		return nil, err
	}

	q := document.ByID(id)
	if m.Hooks.PreRead != nil {
		q, err = m.Hooks.PreRead(ctx, q)
		if err != nil {
			return nil, err
		}
	}
	q = e.excludeDeleted(q)

	d, err := repo.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, types.NewError(types.KindNotFound, "No document with ID '"+id+"' in '"+m.Name+"'")
	}

	d.WithID(d.ID())
	if err := e.attachEmbeds(ctx, m, d, embed); err != nil {
		return nil, err
	}

	if m.Hooks.PostRead != nil {
		d, err = m.Hooks.PostRead(ctx, d)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Create persists a new document. Virtual one-to-many fields in the payload
// are discarded; they exist only as foreign keys on the children.
func (e *Engine) Create(ctx context.Context, m *model.Model, payload document.Data) (document.Data, *types.CommonError) {
	repo, err := e.Repository(m)
	if err != nil {
		return nil, err
	}

	if m.Hooks.PreCreate != nil {
		payload, err = m.Hooks.PreCreate(ctx, payload)
		if err != nil {
			return nil, err
		}
	}

	payload = e.stripVirtuals(m, payload.Clone())
	if e.opts.EnableCreatedAt {
		payload[CreatedAtField] = now()
	}

	created, err := repo.Create(ctx, payload)
	if err != nil {
		return nil, err
	}
	created.WithID(created.ID())

	if m.Hooks.PostCreate != nil {
		created, err = m.Hooks.PostCreate(ctx, created)
		if err != nil {
			return nil, err
		}
	}

	return created, nil
}

// Update merges payload fields into the stored document.
func (e *Engine) Update(ctx context.Context, m *model.Model, id string, payload document.Data) (document.Data, *types.CommonError) {
	repo, err := e.Repository(m)
	if err != nil {
		return nil, err
	}

	if m.Hooks.PreUpdate != nil {
		payload, err = m.Hooks.PreUpdate(ctx, id, payload)
		if err != nil {
			return nil, err
		}
	}

	payload = e.stripVirtuals(m, payload.Clone())
	delete(payload, document.IDField)
	if e.opts.EnableUpdatedAt {
		payload[UpdatedAtField] = now()
	}

	updated, err := repo.Update(ctx, id, payload)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, types.NewError(types.KindNotFound, "No document with ID '"+id+"' in '"+m.Name+"'")
	}
	updated.WithID(updated.ID())

	if m.Hooks.PostUpdate != nil {
		updated, err = m.Hooks.PostUpdate(ctx, updated)
		if err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// DeleteRequest targets one or more documents. HardDelete overrides the
// soft-delete default and removes the records outright.
type DeleteRequest struct {
	IDs        []string
	HardDelete bool
}

// Delete removes (or, with soft delete enabled, marks) each target document.
// Returns the ids actually deleted.
func (e *Engine) Delete(ctx context.Context, m *model.Model, req DeleteRequest) ([]string, *types.CommonError) {
	repo, err := e.Repository(m)
	if err != nil {
		return nil, err
	}

	if m.Hooks.PreDelete != nil {
		if err := m.Hooks.PreDelete(ctx, req.IDs, req.HardDelete); err != nil {
			return nil, err
		}
	}

	soft := e.opts.EnableSoftDelete && !req.HardDelete

	deleted := make([]document.Data, 0, len(req.IDs))
	deletedIDs := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		var d document.Data
		if soft {
			mark := document.Data{IsDeletedField: true}
			if e.opts.EnableDeletedAt {
				mark[DeletedAtField] = now()
			}
			d, err = repo.Update(ctx, id, mark)
		} else {
			d, err = repo.Remove(ctx, id)
		}
		if err != nil {
			return deletedIDs, err
		}
		if d == nil {
			return deletedIDs, types.NewError(types.KindNotFound, "No document with ID '"+id+"' in '"+m.Name+"'")
		}
		deleted = append(deleted, d)
		deletedIDs = append(deletedIDs, id)
	}

	if m.Hooks.PostDelete != nil {
		if err := m.Hooks.PostDelete(ctx, deleted); err != nil {
			return deletedIDs, err
		}
	}

	return deletedIDs, nil
}

// attachEmbeds materializes the named associations onto a loaded document.
// One-to-many values are never stored on the owner, so they are always
// recomputed here; many-to-many linking arrays are replaced by the resolved
// child documents in the output.
func (e *Engine) attachEmbeds(ctx context.Context, m *model.Model, d document.Data, embed []string) *types.CommonError {
	for _, name := range embed {
		a, ok := m.Association(name)
		if !ok {
			return types.NewError(types.KindBadRequest, "Collection '"+m.Name+"' has no association '"+name+"'")
		}

		children, err := e.resolve(ctx, a, d)
		if err != nil {
			return err
		}
		d[a.Name()] = children
	}
	return nil
}

func (e *Engine) resolve(ctx context.Context, a model.Association, owner document.Data) ([]any, *types.CommonError) {
	child, ok := e.registry.Model(a.Target())
	if !ok {
		return nil, types.NewError(types.KindInternal, "association '"+a.Name()+"' targets unknown collection '"+a.Target()+"'")
	}
	childRepo, err := e.Repository(child)
	if err != nil {
		return nil, err
	}

	switch assoc := a.(type) {
	case model.OneToMany:
		q := e.excludeDeleted(document.Query{
			Filter: document.Filter{assoc.ForeignField: owner.ID()},
		})
		docs, err := childRepo.Find(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(docs))
		for _, c := range docs {
			c.WithID(c.ID())
			out = append(out, map[string]any(c))
		}
		return out, nil

	case model.ManyToMany:
		links := model.ParseLinks(owner[assoc.As], assoc.TargetModel)
		refIDs := links.RefIDs()
		if len(refIDs) == 0 {
			return []any{}, nil
		}

		docs, err := childRepo.Find(ctx, e.excludeDeleted(document.ByIDs(refIDs)))
		if err != nil {
			return nil, err
		}
		byID := make(map[string]document.Data, len(docs))
		for _, c := range docs {
			c.WithID(c.ID())
			byID[c.ID()] = c
		}

		// keep the owner's stored link order
		out := make([]any, 0, len(refIDs))
		for _, ref := range refIDs {
			c, ok := byID[ref]
			if !ok {
				log.Warn().Msgf("collection %v: link to missing %v document %v", a.Name(), assoc.TargetModel, ref)
				continue
			}
			if assoc.LinkingModel != "" {
				c[assoc.LinkingModel] = map[string]any(links.Extra(ref))
			}
			out = append(out, map[string]any(c))
		}
		return out, nil
	}

	return nil, types.NewError(types.KindInternal, "unknown association kind on '"+a.Name()+"'")
}

// stripVirtuals drops one-to-many virtual fields from a write payload; they
// live on the children, never on the owner record.
func (e *Engine) stripVirtuals(m *model.Model, payload document.Data) document.Data {
	for _, a := range m.Associations {
		if _, virtual := a.(model.OneToMany); virtual {
			delete(payload, a.Name())
		}
	}
	return payload
}

// excludeDeleted hides soft-deleted documents unless the caller asks about
// the deletion flag itself.
func (e *Engine) excludeDeleted(q document.Query) document.Query {
	if !e.opts.EnableSoftDelete {
		return q
	}
	if q.Filter == nil {
		q.Filter = document.Filter{}
	}
	if _, explicit := q.Filter[IsDeletedField]; !explicit {
		q.Filter[IsDeletedField] = document.NotEquals{Value: true}
	}
	return q
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
