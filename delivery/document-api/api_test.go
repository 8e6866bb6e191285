package documentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/julienschmidt/httprouter"

	"github.com/reisap/rest-hapi/config"
	"github.com/reisap/rest-hapi/repository/document"
	"github.com/reisap/rest-hapi/repository/document/inmemory"
	types "github.com/reisap/rest-hapi/types/http"
	"github.com/reisap/rest-hapi/types/model"
	"github.com/reisap/rest-hapi/usecase/association"
	"github.com/reisap/rest-hapi/usecase/authorize"
	"github.com/reisap/rest-hapi/usecase/crud"
)

func newRouter(t *testing.T, docs ...document.Data) (*httprouter.Router, document.Collections) {
	t.Helper()

	users := &model.Model{Name: "users"}
	registry, err := model.NewRegistry(users)
	if err != nil {
		t.Fatalf("registry: %v", err.Err())
	}

	provider := document.Collections{"users": inmemory.New()}
	for _, d := range docs {
		if _, err := provider.Collection("users").Create(context.Background(), d); err != nil {
			t.Fatalf("seed: %v", err.Err())
		}
	}

	opts := config.Default()
	engine := crud.New(registry, provider, opts)
	manager := association.New(registry, engine)
	gate := authorize.New(opts)

	router := httprouter.New()
	New(engine, manager, gate, users).Register(router, "/users", nil)
	return router, provider
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope types.CommonResponseTyped[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	if envelope.Error != nil {
		t.Fatalf("response carries error: %v", envelope.Error.Err())
	}
	return envelope.Success
}

func Test_Delete_LenientDropsUnauthorizedIDs(t *testing.T) {
	router, provider := newRouter(t,
		document.Data{"_id": "A"},
		document.Data{"_id": "B", "scope": map[string]any{"deleteScope": []any{"admin"}}},
		document.Data{"_id": "C"},
	)

	body, _ := json.Marshal(map[string]any{"ids": []string{"A", "B", "C"}})
	req := httptest.NewRequest(http.MethodDelete, "/users", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, rec.Body.String())
	}
	deleted := decode[[]string](t, rec)
	if !reflect.DeepEqual(deleted, []string{"A", "C"}) {
		t.Errorf("deleted = %v, want [A C]", deleted)
	}

	// B was dropped from the operation, not deleted
	stored, _ := provider.Collection("users").FindOne(context.Background(), document.ByID("B"))
	if stored == nil || stored["isDeleted"] == true {
		t.Errorf("unauthorized document was deleted anyway: %v", stored)
	}
}

func Test_List_RedactsUnauthorizedDocuments(t *testing.T) {
	router, _ := newRouter(t,
		document.Data{"_id": "A", "name": "open"},
		document.Data{"_id": "B", "scope": map[string]any{"readScope": []any{"admin"}}},
	)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, rec.Body.String())
	}
	docs := decode[[]document.Data](t, rec)
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2", len(docs))
	}
	if docs[0].ID() != "A" || docs[0]["name"] != "open" {
		t.Errorf("authorized document altered: %v", docs[0])
	}
	want := document.Data{"error": authorize.RedactedMessage}
	if !reflect.DeepEqual(docs[1], want) {
		t.Errorf("redacted = %v, want %v", docs[1], want)
	}
}

func Test_Find_MissingMapsToNotFound(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/users/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var envelope types.CommonResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	if envelope.Error == nil || envelope.Error.Kind() != types.KindNotFound {
		t.Errorf("error envelope = %+v, want NOT_FOUND", envelope.Error)
	}
}

func Test_Update_ScopedDocumentIsForbidden(t *testing.T) {
	router, provider := newRouter(t,
		document.Data{"_id": "B", "name": "locked", "scope": map[string]any{"updateScope": []any{"admin"}}},
	)

	body, _ := json.Marshal(map[string]any{"name": "renamed"})
	req := httptest.NewRequest(http.MethodPut, "/users/B", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body %v", rec.Code, rec.Body.String())
	}
	stored, _ := provider.Collection("users").FindOne(context.Background(), document.ByID("B"))
	if stored["name"] != "locked" {
		t.Errorf("forbidden update still applied: %v", stored["name"])
	}
}
