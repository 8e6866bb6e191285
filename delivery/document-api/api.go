// Package documentapi exposes one collection over HTTP: the five CRUD
// operations plus the four association operations, with document scope
// authorization enforced around each of them.
package documentapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/reisap/rest-hapi/lib/query"
	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
	"github.com/reisap/rest-hapi/types/model"
	"github.com/reisap/rest-hapi/usecase/association"
	"github.com/reisap/rest-hapi/usecase/authorize"
	"github.com/reisap/rest-hapi/usecase/crud"
	"github.com/reisap/rest-hapi/usecase/scope"
)

const maximumRequestLength = 1 << 20

type service struct {
	engine  *crud.Engine
	manager *association.Manager
	gate    *authorize.Gate
	m       *model.Model
}

func New(
	engine *crud.Engine,
	manager *association.Manager,
	gate *authorize.Gate,
	m *model.Model,
) *service {
	return &service{
		engine:  engine,
		manager: manager,
		gate:    gate,
		m:       m,
	}
}

// Middleware wraps a route handler, typically to stash the caller's scope
// set in the request context.
type Middleware func(httprouter.Handle) httprouter.Handle

// Register mounts the collection's routes under basePath.
func (s *service) Register(router *httprouter.Router, basePath string, mw Middleware) {
	if mw == nil {
		mw = func(next httprouter.Handle) httprouter.Handle { return next }
	}
	router.GET(basePath, mw(s.List))
	router.POST(basePath, mw(s.Create))
	router.DELETE(basePath, mw(s.Delete))
	router.GET(basePath+"/:id", mw(s.Find))
	router.PUT(basePath+"/:id", mw(s.Update))
	router.DELETE(basePath+"/:id", mw(s.DeleteOne))
	router.GET(basePath+"/:id/:association", mw(s.GetAssociation))
	router.POST(basePath+"/:id/:association", mw(s.AddMany))
	router.PUT(basePath+"/:id/:association/:childId", mw(s.AddOne))
	router.DELETE(basePath+"/:id/:association/:childId", mw(s.RemoveOne))
}

func (s *service) List(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	q, embed, err := query.Parse(r.URL.Query())
	if err != nil {
		handleError(w, err)
		return
	}

	docs, err := s.engine.List(r.Context(), s.m, q, embed)
	if err != nil {
		handleError(w, err)
		return
	}

	docs, err = s.gate.PostAuthorizeMany(docs, CallerScope(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}

	respond(w, docs)
}

func (s *service) Find(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	_, embed, err := query.Parse(r.URL.Query())
	if err != nil {
		handleError(w, err)
		return
	}

	d, err := s.engine.Find(r.Context(), s.m, p.ByName("id"), embed)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := s.gate.PostAuthorizeOne(d, CallerScope(r.Context())); err != nil {
		handleError(w, err)
		return
	}

	respond(w, d)
}

func (s *service) Create(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var payload document.Data
	if err := readBody(w, r, &payload); err != nil {
		handleError(w, err)
		return
	}

	created, err := s.engine.Create(r.Context(), s.m, payload)
	if err != nil {
		handleError(w, err)
		return
	}

	respond(w, created)
}

func (s *service) Update(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("id")

	var payload document.Data
	if err := readBody(w, r, &payload); err != nil {
		handleError(w, err)
		return
	}

	repo, err := s.engine.Repository(s.m)
	if err != nil {
		handleError(w, err)
		return
	}
	if _, err := s.gate.PreAuthorize(r.Context(), repo, scope.ActionUpdate, []string{id}, CallerScope(r.Context())); err != nil {
		handleError(w, err)
		return
	}

	updated, err := s.engine.Update(r.Context(), s.m, id, payload)
	if err != nil {
		handleError(w, err)
		return
	}

	respond(w, updated)
}

// deleteRequest is the bulk delete payload.
type deleteRequest struct {
	IDs        []string `json:"ids"`
	HardDelete bool     `json:"hardDelete"`
}

func (s *service) Delete(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var payload deleteRequest
	if err := readBody(w, r, &payload); err != nil {
		handleError(w, err)
		return
	}
	s.delete(w, r, payload)
}

func (s *service) DeleteOne(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	hard := r.URL.Query().Get("hardDelete") == "true"
	s.delete(w, r, deleteRequest{IDs: []string{p.ByName("id")}, HardDelete: hard})
}

func (s *service) delete(w http.ResponseWriter, r *http.Request, payload deleteRequest) {
	repo, err := s.engine.Repository(s.m)
	if err != nil {
		handleError(w, err)
		return
	}

	verdict, err := s.gate.PreAuthorize(r.Context(), repo, scope.ActionDelete, payload.IDs, CallerScope(r.Context()))
	if err != nil {
		handleError(w, err)
		return
	}
	ids := exclude(payload.IDs, verdict.UnauthorizedIDs)

	deleted, err := s.engine.Delete(r.Context(), s.m, crud.DeleteRequest{IDs: ids, HardDelete: payload.HardDelete})
	if err != nil {
		handleError(w, err)
		return
	}

	respond(w, deleted)
}

func readBody(w http.ResponseWriter, r *http.Request, into any) *types.CommonError {
	r.Body = http.MaxBytesReader(w, r.Body, maximumRequestLength)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return types.NewError(types.KindBadRequest, "failed to parse request body")
	}
	return nil
}

func exclude(ids, drop []string) []string {
	if len(drop) == 0 {
		return ids
	}
	dropped := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		dropped[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, skip := dropped[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}
