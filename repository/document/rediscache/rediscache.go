// Package rediscache decorates a document repository with a read-through
// cache for by-id lookups. Cache trouble never fails a request; reads fall
// back to the inner repository.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

var _ document.Repository = &handler{}

type handler struct {
	client *redis.Client
	inner  document.Repository
	prefix string
	ttl    time.Duration
}

func New(client *redis.Client, inner document.Repository, collection string, ttl time.Duration) *handler {
	return &handler{
		client: client,
		inner:  inner,
		prefix: "doc|" + collection + "|",
		ttl:    ttl,
	}
}

func (h *handler) Find(ctx context.Context, q document.Query) ([]document.Data, *types.CommonError) {
	return h.inner.Find(ctx, q)
}

func (h *handler) FindOne(ctx context.Context, q document.Query) (document.Data, *types.CommonError) {
	id, cacheable := byIDOnly(q)
	if !cacheable {
		return h.inner.FindOne(ctx, q)
	}

	raw, err := h.client.Get(ctx, h.prefix+id).Result()
	if err == nil {
		var d document.Data
		if jsonErr := json.Unmarshal([]byte(raw), &d); jsonErr == nil {
			return d, nil
		}
		// poisoned entry, drop and reload
		h.client.Del(ctx, h.prefix+id)
	} else if err != redis.Nil {
		log.Warn().Msgf("cache read failed for %v: %v", h.prefix+id, err)
	}

	d, cerr := h.inner.FindOne(ctx, q)
	if cerr != nil || d == nil {
		return d, cerr
	}
	h.store(ctx, id, d)
	return d, nil
}

func (h *handler) Create(ctx context.Context, payload document.Data) (document.Data, *types.CommonError) {
	created, err := h.inner.Create(ctx, payload)
	if err != nil {
		return nil, err
	}
	h.store(ctx, created.ID(), created)
	return created, nil
}

func (h *handler) Update(ctx context.Context, id string, payload document.Data) (document.Data, *types.CommonError) {
	updated, err := h.inner.Update(ctx, id, payload)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, nil
	}
	h.store(ctx, id, updated)
	return updated, nil
}

func (h *handler) Remove(ctx context.Context, id string) (document.Data, *types.CommonError) {
	removed, err := h.inner.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	if rerr := h.client.Del(ctx, h.prefix+id).Err(); rerr != nil {
		log.Warn().Msgf("cache invalidation failed for %v: %v", h.prefix+id, rerr)
	}
	return removed, nil
}

func (h *handler) store(ctx context.Context, id string, d document.Data) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if rerr := h.client.Set(ctx, h.prefix+id, raw, h.ttl).Err(); rerr != nil {
		log.Warn().Msgf("cache write failed for %v: %v", h.prefix+id, rerr)
	}
}

// byIDOnly reports whether the query is a plain full-document lookup by id,
// the only shape served from cache.
func byIDOnly(q document.Query) (string, bool) {
	if len(q.Select) > 0 || len(q.Filter) != 1 {
		return "", false
	}
	id, ok := q.Filter[document.IDField].(string)
	return id, ok && id != ""
}
