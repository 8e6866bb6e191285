package model

import (
	"github.com/google/uuid"

	"github.com/reisap/rest-hapi/repository/document"
)

// EntryIDField is the internal identity of one linking entry. It is assigned
// once when the entry is created and survives every later update of the
// entry's extra fields.
const EntryIDField = "_id"

// Links is the parsed form of one document's many-to-many association array:
// a keyed mapping from referenced document id to linking entry, with a
// stable iteration order matching the stored array. Mutation goes through
// Upsert and Remove; Render writes the array form back.
type Links struct {
	refField string
	entries  map[string]document.Data
	order    []string
}

// ParseLinks reads the association array stored under one document field.
// refField is the entry field holding the referenced document id (the
// referenced collection's name, per the persisted shape). Entries missing
// the ref field are dropped.
func ParseLinks(raw any, refField string) *Links {
	l := &Links{
		refField: refField,
		entries:  make(map[string]document.Data),
	}

	arr, ok := raw.([]any)
	if !ok {
		return l
	}
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		entry := document.Data(m)
		ref, ok := entry[refField].(string)
		if !ok || ref == "" {
			continue
		}
		if _, dup := l.entries[ref]; !dup {
			l.order = append(l.order, ref)
		}
		l.entries[ref] = entry
	}

	return l
}

// Get returns the entry referencing refID.
func (l *Links) Get(refID string) (document.Data, bool) {
	e, ok := l.entries[refID]
	return e, ok
}

// RefIDs returns the referenced ids in stored order.
func (l *Links) RefIDs() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of entries.
func (l *Links) Len() int {
	return len(l.entries)
}

// Upsert creates or updates the entry referencing refID and returns the
// entry's internal id. On update the extra fields are replaced wholesale
// while the internal id is preserved, so repeated linking of the same pair
// never forks identity.
func (l *Links) Upsert(refID string, extra document.Data) string {
	entryID := uuid.New().String()
	if existing, ok := l.entries[refID]; ok {
		if id, ok := existing[EntryIDField].(string); ok && id != "" {
			entryID = id
		}
	} else {
		l.order = append(l.order, refID)
	}

	entry := document.Data{
		EntryIDField: entryID,
		l.refField:   refID,
	}
	for k, v := range extra {
		if k == EntryIDField || k == l.refField {
			continue
		}
		entry[k] = v
	}
	l.entries[refID] = entry

	return entryID
}

// Remove drops the entry referencing refID, reporting whether it existed.
// Removing an absent entry is a no-op.
func (l *Links) Remove(refID string) bool {
	if _, ok := l.entries[refID]; !ok {
		return false
	}
	delete(l.entries, refID)
	for i, ref := range l.order {
		if ref == refID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// Render writes the array form persisted on the document.
func (l *Links) Render() []any {
	out := make([]any, 0, len(l.order))
	for _, ref := range l.order {
		out = append(out, map[string]any(l.entries[ref]))
	}
	return out
}

// Extra returns the entry's extra fields, without its identity or reference.
func (l *Links) Extra(refID string) document.Data {
	entry, ok := l.entries[refID]
	if !ok {
		return nil
	}
	out := document.Data{}
	for k, v := range entry {
		if k == EntryIDField || k == l.refField {
			continue
		}
		out[k] = v
	}
	return out
}
