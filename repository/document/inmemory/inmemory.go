package inmemory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

var _ document.Repository = &handler{}

// handler emulates a single document collection in process memory.
// Useful for tests and examples; no durability whatsoever.
type handler struct {
	mtx   sync.Mutex
	data  map[string]document.Data
	order []string
}

func New() *handler {
	return &handler{
		data: make(map[string]document.Data),
	}
}

func (h *handler) Find(ctx context.Context, q document.Query) ([]document.Data, *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	result := make([]document.Data, 0, len(h.order))
	for _, id := range h.order {
		d := h.data[id]
		if matchFilter(d, q.Filter) {
			result = append(result, d.Clone())
		}
	}

	if q.Sort != "" {
		sortDocs(result, q.Sort)
	}

	if q.Skip > 0 {
		if q.Skip >= len(result) {
			result = result[:0]
		} else {
			result = result[q.Skip:]
		}
	}
	if q.Limit > 0 && q.Limit < len(result) {
		result = result[:q.Limit]
	}

	if len(q.Select) > 0 {
		for i, d := range result {
			result[i] = project(d, q.Select)
		}
	}

	return result, nil
}

func (h *handler) FindOne(ctx context.Context, q document.Query) (document.Data, *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	for _, id := range h.order {
		d := h.data[id]
		if matchFilter(d, q.Filter) {
			if len(q.Select) > 0 {
				return project(d.Clone(), q.Select), nil
			}
			return d.Clone(), nil
		}
	}

	return nil, nil
}

func (h *handler) Create(ctx context.Context, payload document.Data) (document.Data, *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	stored := payload.Clone()
	id := stored.ID()
	if id == "" {
		id = uuid.New().String()
		stored.WithID(id)
	}

	if _, ok := h.data[id]; ok {
		return nil, types.NewError(types.KindBadRequest, "A document with ID '"+id+"' already exists")
	}

	h.data[id] = stored
	h.order = append(h.order, id)

	return stored.Clone(), nil
}

func (h *handler) Update(ctx context.Context, id string, payload document.Data) (document.Data, *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	stored, ok := h.data[id]
	if !ok {
		return nil, nil
	}

	for k, v := range payload.Clone() {
		if k == document.IDField {
			continue
		}
		if v == nil {
			delete(stored, k)
			continue
		}
		stored[k] = v
	}

	return stored.Clone(), nil
}

func (h *handler) Remove(ctx context.Context, id string) (document.Data, *types.CommonError) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	stored, ok := h.data[id]
	if !ok {
		return nil, nil
	}

	delete(h.data, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	return stored, nil
}

func matchFilter(d document.Data, f document.Filter) bool {
	for field, cond := range f {
		stored, present := d[field]
		switch c := cond.(type) {
		case document.In:
			if !present {
				return false
			}
			hit := false
			for _, v := range c.Values {
				if equalValue(stored, v) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		case document.NotEquals:
			if present && equalValue(stored, c.Value) {
				return false
			}
		default:
			if !present || !equalValue(stored, cond) {
				return false
			}
		}
	}
	return true
}

// equalValue compares loosely: ids may be stored as stringers and JSON
// numbers arrive as float64, so fall back to the string rendering when
// the dynamic types differ.
func equalValue(stored, want any) bool {
	if reflect.DeepEqual(stored, want) {
		return true
	}
	return fmt.Sprintf("%v", stored) == fmt.Sprintf("%v", want)
}

func sortDocs(docs []document.Data, field string) {
	desc := false
	if len(field) > 0 && field[0] == '-' {
		desc = true
		field = field[1:]
	}
	sort.SliceStable(docs, func(a, b int) bool {
		av := fmt.Sprintf("%v", docs[a][field])
		bv := fmt.Sprintf("%v", docs[b][field])
		if desc {
			return av > bv
		}
		return av < bv
	})
}

func project(d document.Data, fields []string) document.Data {
	out := document.Data{}
	if v, ok := d[document.IDField]; ok {
		out[document.IDField] = v
	}
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}
