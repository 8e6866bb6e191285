// Package mongo adapts one MongoDB collection to the document repository
// contract. Ids are exposed as hex strings; ObjectID conversion happens at
// this boundary only.
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

var _ document.Repository = &handler{}

type handler struct {
	coll *mongo.Collection
}

func New(coll *mongo.Collection) *handler {
	return &handler{coll: coll}
}

func (h *handler) Find(ctx context.Context, q document.Query) ([]document.Data, *types.CommonError) {
	opts := options.Find()
	if len(q.Select) > 0 {
		opts.SetProjection(projection(q.Select))
	}
	if q.Sort != "" {
		opts.SetSort(sortSpec(q.Sort))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := h.coll.Find(ctx, toFilter(q.Filter), opts)
	if err != nil {
		return nil, types.NewError(types.KindServerTimeout, "There was an error accessing the database: "+err.Error())
	}

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, types.NewError(types.KindServerTimeout, "There was an error reading the database cursor: "+err.Error())
	}

	out := make([]document.Data, 0, len(raws))
	for _, raw := range raws {
		out = append(out, fromBson(raw))
	}
	return out, nil
}

func (h *handler) FindOne(ctx context.Context, q document.Query) (document.Data, *types.CommonError) {
	opts := options.FindOne()
	if len(q.Select) > 0 {
		opts.SetProjection(projection(q.Select))
	}

	var raw bson.M
	err := h.coll.FindOne(ctx, toFilter(q.Filter), opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewError(types.KindServerTimeout, "There was an error accessing the database: "+err.Error())
	}

	return fromBson(raw), nil
}

func (h *handler) Create(ctx context.Context, payload document.Data) (document.Data, *types.CommonError) {
	doc := toBson(payload)
	if payload.ID() == "" {
		delete(doc, document.IDField)
	}

	res, err := h.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, types.NewError(types.KindServerTimeout, "There was an error writing to the database: "+err.Error())
	}

	created := payload.Clone()
	created.WithID(idString(res.InsertedID))
	return created, nil
}

func (h *handler) Update(ctx context.Context, id string, payload document.Data) (document.Data, *types.CommonError) {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range payload {
		if k == document.IDField {
			continue
		}
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return h.FindOne(ctx, document.ByID(id))
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err := h.coll.FindOneAndUpdate(ctx, bson.M{document.IDField: idValue(id)}, update, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewError(types.KindServerTimeout, "There was an error writing to the database: "+err.Error())
	}

	return fromBson(raw), nil
}

func (h *handler) Remove(ctx context.Context, id string) (document.Data, *types.CommonError) {
	var raw bson.M
	err := h.coll.FindOneAndDelete(ctx, bson.M{document.IDField: idValue(id)}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewError(types.KindServerTimeout, "There was an error writing to the database: "+err.Error())
	}

	return fromBson(raw), nil
}

func toFilter(f document.Filter) bson.M {
	out := bson.M{}
	for field, cond := range f {
		isID := field == document.IDField
		switch c := cond.(type) {
		case document.In:
			values := make([]any, 0, len(c.Values))
			for _, v := range c.Values {
				if isID {
					values = append(values, idValue(v))
					continue
				}
				values = append(values, v)
			}
			out[field] = bson.M{"$in": values}
		case document.NotEquals:
			out[field] = bson.M{"$ne": c.Value}
		default:
			if s, ok := cond.(string); ok && isID {
				out[field] = idValue(s)
				continue
			}
			out[field] = cond
		}
	}
	return out
}

// idValue maps a string id back to ObjectID when it looks like one;
// documents created outside the driver may carry plain string ids.
func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idString(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func projection(fields []string) bson.M {
	p := bson.M{document.IDField: 1}
	for _, f := range fields {
		p[f] = 1
	}
	return p
}

func sortSpec(sort string) bson.D {
	order := 1
	if len(sort) > 0 && sort[0] == '-' {
		order = -1
		sort = sort[1:]
	}
	return bson.D{{Key: sort, Value: order}}
}

func toBson(d document.Data) bson.M {
	out := bson.M{}
	for k, v := range d {
		out[k] = v
	}
	return out
}

// fromBson converts driver types to the plain forms the usecases expect:
// ObjectID ids to hex strings, bson.A to []any, nested bson.M to plain maps.
func fromBson(raw bson.M) document.Data {
	out := document.Data{}
	for k, v := range raw {
		if k == document.IDField {
			out[k] = idString(v)
			if out[k] == "" {
				out[k] = v
			}
			continue
		}
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case bson.A:
		arr := make([]any, len(t))
		for i, e := range t {
			arr[i] = plainValue(e)
		}
		return arr
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = plainValue(e)
		}
		return m
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}
