package documentapi

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/reisap/rest-hapi/lib/query"
	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
	"github.com/reisap/rest-hapi/usecase/association"
	"github.com/reisap/rest-hapi/usecase/scope"
)

func (s *service) GetAssociation(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ownerID := p.ByName("id")

	q, _, err := query.Parse(r.URL.Query())
	if err != nil {
		handleError(w, err)
		return
	}

	if err := s.preAuthorizeOwner(r, scope.ActionRead, ownerID); err != nil {
		handleError(w, err)
		return
	}

	docs, err := s.manager.GetAll(r.Context(), s.m, ownerID, p.ByName("association"), q)
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

func (s *service) AddOne(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ownerID := p.ByName("id")

	extra := document.Data{}
	if r.ContentLength > 0 {
		if err := readBody(w, r, &extra); err != nil {
			handleError(w, err)
			return
		}
	}

	if err := s.preAuthorizeOwner(r, scope.ActionAssociate, ownerID); err != nil {
		handleError(w, err)
		return
	}

	if err := s.manager.AddOne(r.Context(), s.m, ownerID, p.ByName("childId"), p.ByName("association"), extra); err != nil {
		handleError(w, err)
		return
	}

	respond(w, "ok")
}

func (s *service) RemoveOne(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ownerID := p.ByName("id")

	if err := s.preAuthorizeOwner(r, scope.ActionAssociate, ownerID); err != nil {
		handleError(w, err)
		return
	}

	if err := s.manager.RemoveOne(r.Context(), s.m, ownerID, p.ByName("childId"), p.ByName("association")); err != nil {
		handleError(w, err)
		return
	}

	respond(w, "ok")
}

func (s *service) AddMany(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ownerID := p.ByName("id")
	associationName := p.ByName("association")

	var payload []any
	if err := readBody(w, r, &payload); err != nil {
		handleError(w, err)
		return
	}

	a, ok := s.m.Association(associationName)
	if !ok {
		handleError(w, types.NewError(types.KindBadRequest,
			"Collection '"+s.m.Name+"' has no association '"+associationName+"'"))
		return
	}
	children, err := association.NormalizeLinks(payload, a.Target())
	if err != nil {
		handleError(w, err)
		return
	}

	if err := s.preAuthorizeOwner(r, scope.ActionAssociate, ownerID); err != nil {
		handleError(w, err)
		return
	}

	if err := s.manager.AddMany(r.Context(), s.m, ownerID, children, associationName); err != nil {
		handleError(w, err)
		return
	}

	respond(w, "ok")
}

func (s *service) preAuthorizeOwner(r *http.Request, action scope.Action, ownerID string) *types.CommonError {
	repo, err := s.engine.Repository(s.m)
	if err != nil {
		return err
	}
	_, err = s.gate.PreAuthorize(r.Context(), repo, action, []string{ownerID}, CallerScope(r.Context()))
	return err
}
