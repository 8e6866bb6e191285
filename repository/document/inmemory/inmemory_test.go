package inmemory

import (
	"context"
	"reflect"
	"testing"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

func seed(t *testing.T, h *handler, docs ...document.Data) {
	t.Helper()
	for _, d := range docs {
		if _, err := h.Create(context.Background(), d); err != nil {
			t.Fatalf("seed: %v", err.Err())
		}
	}
}

func ids(docs []document.Data) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

func Test_Create(t *testing.T) {
	h := New()

	created, err := h.Create(context.Background(), document.Data{"name": "ada"})
	if err != nil {
		t.Fatalf("Create() error = %v", err.Err())
	}
	if created.ID() == "" {
		t.Error("Create() assigned no id")
	}

	withID, err := h.Create(context.Background(), document.Data{"_id": "u1", "name": "grace"})
	if err != nil {
		t.Fatalf("Create() error = %v", err.Err())
	}
	if withID.ID() != "u1" {
		t.Errorf("Create() id = %v, want u1", withID.ID())
	}

	_, err = h.Create(context.Background(), document.Data{"_id": "u1"})
	if err == nil || err.Kind() != types.KindBadRequest {
		t.Fatalf("Create() duplicate id = %v, want BAD_REQUEST", err)
	}
}

func Test_Create_DoesNotAliasPayload(t *testing.T) {
	h := New()

	payload := document.Data{"_id": "u1", "tags": []any{"a"}}
	if _, err := h.Create(context.Background(), payload); err != nil {
		t.Fatalf("Create() error = %v", err.Err())
	}

	payload["name"] = "mutated"
	payload["tags"].([]any)[0] = "mutated"

	stored, _ := h.FindOne(context.Background(), document.ByID("u1"))
	if _, ok := stored["name"]; ok {
		t.Error("caller mutation leaked into the store")
	}
	if !reflect.DeepEqual(stored["tags"], []any{"a"}) {
		t.Errorf("tags = %v, want [a]", stored["tags"])
	}
}

func Test_Find(t *testing.T) {
	h := New()
	seed(t, h,
		document.Data{"_id": "a", "status": "active", "rank": "2"},
		document.Data{"_id": "b", "status": "inactive", "rank": "1"},
		document.Data{"_id": "c", "status": "active", "rank": "3"},
	)

	tests := []struct {
		name string
		q    document.Query
		want []string
	}{
		{
			name: "all in insertion order",
			q:    document.Query{},
			want: []string{"a", "b", "c"},
		},
		{
			name: "equality filter",
			q:    document.Query{Filter: document.Filter{"status": "active"}},
			want: []string{"a", "c"},
		},
		{
			name: "membership filter",
			q: document.Query{Filter: document.Filter{
				"_id": document.In{Values: []string{"c", "a"}},
			}},
			want: []string{"a", "c"},
		},
		{
			name: "not-equals matches missing field",
			q: document.Query{Filter: document.Filter{
				"isDeleted": document.NotEquals{Value: true},
			}},
			want: []string{"a", "b", "c"},
		},
		{
			name: "sort ascending",
			q:    document.Query{Sort: "rank"},
			want: []string{"b", "a", "c"},
		},
		{
			name: "sort descending",
			q:    document.Query{Sort: "-rank"},
			want: []string{"c", "a", "b"},
		},
		{
			name: "skip and limit",
			q:    document.Query{Skip: 1, Limit: 1},
			want: []string{"b"},
		},
		{
			name: "skip past the end",
			q:    document.Query{Skip: 10},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := h.Find(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("Find() error = %v", err.Err())
			}
			if !reflect.DeepEqual(ids(docs), tt.want) {
				t.Errorf("Find() = %v, want %v", ids(docs), tt.want)
			}
		})
	}
}

func Test_Find_Select(t *testing.T) {
	h := New()
	seed(t, h, document.Data{"_id": "a", "name": "ada", "email": "ada@x"})

	docs, err := h.Find(context.Background(), document.Query{Select: []string{"name"}})
	if err != nil {
		t.Fatalf("Find() error = %v", err.Err())
	}
	want := document.Data{"_id": "a", "name": "ada"}
	if !reflect.DeepEqual(docs[0], want) {
		t.Errorf("Find() = %v, want %v", docs[0], want)
	}
}

func Test_FindOne(t *testing.T) {
	h := New()
	seed(t, h, document.Data{"_id": "a", "name": "ada"})

	d, err := h.FindOne(context.Background(), document.ByID("a"))
	if err != nil {
		t.Fatalf("FindOne() error = %v", err.Err())
	}
	if d.ID() != "a" {
		t.Errorf("FindOne() id = %v, want a", d.ID())
	}

	d, err = h.FindOne(context.Background(), document.ByID("missing"))
	if err != nil {
		t.Fatalf("FindOne() error = %v", err.Err())
	}
	if d != nil {
		t.Errorf("FindOne() on absent id = %v, want nil without error", d)
	}
}

func Test_Update(t *testing.T) {
	h := New()
	seed(t, h, document.Data{"_id": "a", "name": "ada", "email": "ada@x"})

	updated, err := h.Update(context.Background(), "a", document.Data{
		"_id":   "hijacked",
		"name":  "lovelace",
		"email": nil,
		"role":  "admin",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err.Err())
	}

	want := document.Data{"_id": "a", "name": "lovelace", "role": "admin"}
	if !reflect.DeepEqual(updated, want) {
		t.Errorf("Update() = %v, want %v", updated, want)
	}

	missing, err := h.Update(context.Background(), "nope", document.Data{"name": "x"})
	if err != nil {
		t.Fatalf("Update() error = %v", err.Err())
	}
	if missing != nil {
		t.Errorf("Update() on absent id = %v, want nil without error", missing)
	}
}

func Test_Remove(t *testing.T) {
	h := New()
	seed(t, h,
		document.Data{"_id": "a"},
		document.Data{"_id": "b"},
	)

	removed, err := h.Remove(context.Background(), "a")
	if err != nil {
		t.Fatalf("Remove() error = %v", err.Err())
	}
	if removed.ID() != "a" {
		t.Errorf("Remove() = %v, want the removed document", removed)
	}

	docs, _ := h.Find(context.Background(), document.Query{})
	if !reflect.DeepEqual(ids(docs), []string{"b"}) {
		t.Errorf("after Remove, Find() = %v, want [b]", ids(docs))
	}

	missing, err := h.Remove(context.Background(), "a")
	if err != nil {
		t.Fatalf("Remove() error = %v", err.Err())
	}
	if missing != nil {
		t.Errorf("Remove() on absent id = %v, want nil without error", missing)
	}
}
