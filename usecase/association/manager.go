// Package association maintains relationships between documents: virtual
// one-to-many foreign keys on the child, and mirrored many-to-many linking
// entries on both documents.
//
// Known consistency gap: a link or unlink persists the owner and the child
// as two separate writes. When one save succeeds and the other fails the
// operation reports failure, but the persisted side is not rolled back.
package association

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
	"github.com/reisap/rest-hapi/types/model"
	"github.com/reisap/rest-hapi/usecase/crud"
)

type Manager struct {
	registry *model.Registry
	engine   *crud.Engine
}

func New(registry *model.Registry, engine *crud.Engine) *Manager {
	return &Manager{
		registry: registry,
		engine:   engine,
	}
}

// AddOne links one child to the owner under the named association. For a
// many-to-many association an existing link is updated in place: its extra
// fields are replaced and its internal entry id is preserved.
func (m *Manager) AddOne(ctx context.Context, owner *model.Model, ownerID, childID, associationName string, extra document.Data) *types.CommonError {
	a, ok := owner.Association(associationName)
	if !ok {
		return types.NewError(types.KindBadRequest, "Collection '"+owner.Name+"' has no association '"+associationName+"'")
	}

	ownerDoc, childDoc, err := m.loadPair(ctx, owner, ownerID, a, childID)
	if err != nil {
		return err
	}

	return m.link(ctx, owner, a, ownerDoc, childDoc, extra)
}

// RemoveOne unlinks one child from the owner. Removing a link that does not
// exist is a no-op, not an error.
func (m *Manager) RemoveOne(ctx context.Context, owner *model.Model, ownerID, childID, associationName string) *types.CommonError {
	a, ok := owner.Association(associationName)
	if !ok {
		return types.NewError(types.KindBadRequest, "Collection '"+owner.Name+"' has no association '"+associationName+"'")
	}

	ownerDoc, childDoc, err := m.loadPair(ctx, owner, ownerID, a, childID)
	if err != nil {
		return err
	}

	childRepo, err := m.engine.Repository(mustModel(m.registry, a.Target()))
	if err != nil {
		return err
	}

	switch assoc := a.(type) {
	case model.OneToMany:
		if _, err := childRepo.Update(ctx, childID, document.Data{assoc.ForeignField: nil}); err != nil {
			return types.NewError(types.KindGatewayTimeout, "There was an error removing the association: "+err.Err().Error())
		}
		return nil

	case model.ManyToMany:
		rec, ok := m.registry.Reciprocal(owner.Name, assoc.As)
		if !ok {
			return types.NewError(types.KindInternal, "Association does not exist")
		}

		ownerLinks := model.ParseLinks(ownerDoc[assoc.As], assoc.TargetModel)
		childLinks := model.ParseLinks(childDoc[rec.As], rec.TargetModel)

		changedOwner := ownerLinks.Remove(childID)
		changedChild := childLinks.Remove(ownerID)
		if !changedOwner && !changedChild {
			return nil
		}

		ownerRepo, err := m.engine.Repository(owner)
		if err != nil {
			return err
		}
		if changedOwner {
			if _, err := ownerRepo.Update(ctx, ownerID, document.Data{assoc.As: ownerLinks.Render()}); err != nil {
				return types.NewError(types.KindGatewayTimeout, "There was an error removing the association: "+err.Err().Error())
			}
		}
		if changedChild {
			if _, err := childRepo.Update(ctx, childID, document.Data{rec.As: childLinks.Render()}); err != nil {
				return types.NewError(types.KindGatewayTimeout, "There was an error removing the association: "+err.Err().Error())
			}
		}
		return nil
	}

	return types.NewError(types.KindInternal, "unknown association kind on '"+a.Name()+"'")
}

// ChildLink is one normalized addMany element.
type ChildLink struct {
	ID    string
	Extra document.Data
}

// NormalizeLinks accepts the two payload shapes addMany supports: a plain
// sequence of child ids, or a sequence of records each carrying a child id
// plus extra linking fields. The child id key may be the child collection
// name, "childId", or "_id".
func NormalizeLinks(payload []any, childModel string) ([]ChildLink, *types.CommonError) {
	out := make([]ChildLink, 0, len(payload))
	for _, raw := range payload {
		switch v := raw.(type) {
		case string:
			out = append(out, ChildLink{ID: v})
		case map[string]any:
			record := document.Data(v)
			id := ""
			for _, key := range []string{childModel, "childId", document.IDField} {
				if s, ok := record[key].(string); ok && s != "" {
					id = s
					break
				}
			}
			if id == "" {
				return nil, types.NewError(types.KindBadRequest, "Association record is missing a child ID")
			}
			extra := document.Data{}
			for k, val := range record {
				if k == childModel || k == "childId" || k == document.IDField {
					continue
				}
				extra[k] = val
			}
			out = append(out, ChildLink{ID: id, Extra: extra})
		default:
			return nil, types.NewError(types.KindBadRequest, "Association payload must contain ids or records")
		}
	}
	return out, nil
}

// AddMany links each child in input order. Links are applied one at a time
// against the same loaded owner document: every step mutates the owner's
// in-memory association array before the next one reads it, so the steps
// must not run concurrently. This is explicitly not atomic: a failure
// partway aborts the remainder, and links already persisted stay persisted.
func (m *Manager) AddMany(ctx context.Context, owner *model.Model, ownerID string, children []ChildLink, associationName string) *types.CommonError {
	a, ok := owner.Association(associationName)
	if !ok {
		return types.NewError(types.KindBadRequest, "Collection '"+owner.Name+"' has no association '"+associationName+"'")
	}

	ownerRepo, err := m.engine.Repository(owner)
	if err != nil {
		return err
	}
	ownerDoc, err := ownerRepo.FindOne(ctx, document.ByID(ownerID))
	if err != nil {
		return err
	}
	if ownerDoc == nil {
		return types.NewError(types.KindNotFound, "No document with ID '"+ownerID+"' in '"+owner.Name+"'")
	}
	ownerDoc.WithID(ownerDoc.ID())

	child, childRepo, err := m.childRepo(a)
	if err != nil {
		return err
	}

	for _, c := range children {
		childDoc, err := childRepo.FindOne(ctx, document.ByID(c.ID))
		if err != nil {
			return err
		}
		if childDoc == nil {
			return types.NewError(types.KindNotFound, "No document with ID '"+c.ID+"' in '"+child.Name+"'")
		}
		if err := m.link(ctx, owner, a, ownerDoc, childDoc, c.Extra); err != nil {
			return err
		}
	}
	return nil
}

// GetAll resolves the association on the owner and lists the child
// documents through the CRUD engine, applying the caller's query against
// the child collection. When a linking model is declared, each returned
// child carries its linking entry's extra fields under the linking model
// name.
func (m *Manager) GetAll(ctx context.Context, owner *model.Model, ownerID, associationName string, q document.Query) ([]document.Data, *types.CommonError) {
	a, ok := owner.Association(associationName)
	if !ok {
		return nil, types.NewError(types.KindBadRequest, "Collection '"+owner.Name+"' has no association '"+associationName+"'")
	}

	ownerRepo, err := m.engine.Repository(owner)
	if err != nil {
		return nil, err
	}
	ownerDoc, err := ownerRepo.FindOne(ctx, document.ByID(ownerID))
	if err != nil {
		return nil, err
	}
	if ownerDoc == nil {
		return nil, types.NewError(types.KindNotFound, "No document with ID '"+ownerID+"' in '"+owner.Name+"'")
	}
	ownerDoc.WithID(ownerDoc.ID())

	child, _, err := m.childRepo(a)
	if err != nil {
		return nil, err
	}
	if q.Filter == nil {
		q.Filter = document.Filter{}
	}

	switch assoc := a.(type) {
	case model.OneToMany:
		q.Filter[assoc.ForeignField] = ownerID
		return m.engine.List(ctx, child, q, nil)

	case model.ManyToMany:
		links := model.ParseLinks(ownerDoc[assoc.As], assoc.TargetModel)
		refIDs := links.RefIDs()
		if len(refIDs) == 0 {
			return []document.Data{}, nil
		}
		q.Filter[document.IDField] = document.In{Values: refIDs}

		docs, err := m.engine.List(ctx, child, q, nil)
		if err != nil {
			return nil, err
		}

		if q.Sort == "" {
			docs = reorder(docs, refIDs)
		}
		if assoc.LinkingModel != "" {
			for _, d := range docs {
				d[assoc.LinkingModel] = map[string]any(links.Extra(d.ID()))
			}
		}
		return docs, nil
	}

	return nil, types.NewError(types.KindInternal, "unknown association kind on '"+a.Name()+"'")
}

// link applies one linking step against already-loaded owner and child
// documents, mutating the owner's association array in place so consecutive
// addMany steps observe each other's changes.
func (m *Manager) link(ctx context.Context, owner *model.Model, a model.Association, ownerDoc, childDoc document.Data, extra document.Data) *types.CommonError {
	childRepo, err := m.engine.Repository(mustModel(m.registry, a.Target()))
	if err != nil {
		return err
	}
	childID := childDoc.ID()

	switch assoc := a.(type) {
	case model.OneToMany:
		if _, err := childRepo.Update(ctx, childID, document.Data{assoc.ForeignField: ownerDoc.ID()}); err != nil {
			return types.NewError(types.KindGatewayTimeout, "There was an error setting the association: "+err.Err().Error())
		}
		return nil

	case model.ManyToMany:
		rec, ok := m.registry.Reciprocal(owner.Name, assoc.As)
		if !ok {
			return types.NewError(types.KindInternal, "Association does not exist")
		}

		ownerLinks := model.ParseLinks(ownerDoc[assoc.As], assoc.TargetModel)
		ownerLinks.Upsert(childID, extra)
		ownerDoc[assoc.As] = ownerLinks.Render()

		childLinks := model.ParseLinks(childDoc[rec.As], rec.TargetModel)
		childLinks.Upsert(ownerDoc.ID(), extra)

		ownerRepo, err := m.engine.Repository(owner)
		if err != nil {
			return err
		}
		if _, err := ownerRepo.Update(ctx, ownerDoc.ID(), document.Data{assoc.As: ownerLinks.Render()}); err != nil {
			return types.NewError(types.KindGatewayTimeout, "There was an error setting the association: "+err.Err().Error())
		}
		if _, err := childRepo.Update(ctx, childID, document.Data{rec.As: childLinks.Render()}); err != nil {
			return types.NewError(types.KindGatewayTimeout, "There was an error setting the association: "+err.Err().Error())
		}
		return nil
	}

	return types.NewError(types.KindInternal, "unknown association kind on '"+a.Name()+"'")
}

// loadPair reads the owner and the child concurrently; they are independent
// documents, only the subsequent mutation step is ordered.
func (m *Manager) loadPair(ctx context.Context, owner *model.Model, ownerID string, a model.Association, childID string) (document.Data, document.Data, *types.CommonError) {
	ownerRepo, err := m.engine.Repository(owner)
	if err != nil {
		return nil, nil, err
	}
	child, childRepo, err := m.childRepo(a)
	if err != nil {
		return nil, nil, err
	}

	var ownerDoc, childDoc document.Data
	var ownerErr, childErr *types.CommonError

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := ownerRepo.FindOne(gctx, document.ByID(ownerID))
		if err != nil {
			ownerErr = err
			return err.Err()
		}
		ownerDoc = d
		return nil
	})
	g.Go(func() error {
		d, err := childRepo.FindOne(gctx, document.ByID(childID))
		if err != nil {
			childErr = err
			return err.Err()
		}
		childDoc = d
		return nil
	})
	if gerr := g.Wait(); gerr != nil {
		if ownerErr != nil {
			return nil, nil, ownerErr
		}
		if childErr != nil {
			return nil, nil, childErr
		}
		return nil, nil, types.NewError(types.KindServerTimeout, gerr.Error())
	}

	if ownerDoc == nil {
		return nil, nil, types.NewError(types.KindNotFound, "No document with ID '"+ownerID+"' in '"+owner.Name+"'")
	}
	if childDoc == nil {
		return nil, nil, types.NewError(types.KindNotFound, "No document with ID '"+childID+"' in '"+child.Name+"'")
	}
	ownerDoc.WithID(ownerDoc.ID())
	childDoc.WithID(childDoc.ID())

	return ownerDoc, childDoc, nil
}

func (m *Manager) childRepo(a model.Association) (*model.Model, document.Repository, *types.CommonError) {
	child, ok := m.registry.Model(a.Target())
	if !ok {
		return nil, nil, types.NewError(types.KindInternal, "association '"+a.Name()+"' targets unknown collection '"+a.Target()+"'")
	}
	repo, err := m.engine.Repository(child)
	if err != nil {
		return nil, nil, err
	}
	return child, repo, nil
}

func mustModel(r *model.Registry, name string) *model.Model {
	m, ok := r.Model(name)
	if ok {
		return m
	}
	return &model.Model{Name: name}
}

func reorder(docs []document.Data, refIDs []string) []document.Data {
	byID := make(map[string]document.Data, len(docs))
	for _, d := range docs {
		byID[d.ID()] = d
	}
	out := make([]document.Data, 0, len(docs))
	for _, ref := range refIDs {
		if d, ok := byID[ref]; ok {
			out = append(out, d)
		}
	}
	return out
}
