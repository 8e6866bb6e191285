package model

import (
	"reflect"
	"testing"

	"github.com/reisap/rest-hapi/repository/document"
)

func Test_Links_UpsertPreservesIdentity(t *testing.T) {
	l := ParseLinks(nil, "users")

	first := l.Upsert("u1", document.Data{"role": "member"})
	if first == "" {
		t.Fatal("Upsert() returned empty entry id")
	}

	second := l.Upsert("u1", document.Data{"role": "owner"})
	if second != first {
		t.Errorf("Upsert() forked entry identity: %v then %v", first, second)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}

	entry, ok := l.Get("u1")
	if !ok {
		t.Fatal("Get() entry missing after upsert")
	}
	if entry["role"] != "owner" {
		t.Errorf("extra fields not replaced: %v", entry)
	}
}

func Test_Links_UpsertReplacesExtraWholesale(t *testing.T) {
	l := ParseLinks(nil, "users")
	l.Upsert("u1", document.Data{"role": "member", "since": "2020"})
	l.Upsert("u1", document.Data{"role": "owner"})

	if !reflect.DeepEqual(l.Extra("u1"), document.Data{"role": "owner"}) {
		t.Errorf("Extra() = %v, want only the new fields", l.Extra("u1"))
	}
}

func Test_Links_OrderAndRemove(t *testing.T) {
	l := ParseLinks(nil, "users")
	l.Upsert("u1", nil)
	l.Upsert("u2", nil)
	l.Upsert("u3", nil)

	if !reflect.DeepEqual(l.RefIDs(), []string{"u1", "u2", "u3"}) {
		t.Errorf("RefIDs() = %v, want creation order", l.RefIDs())
	}

	if !l.Remove("u2") {
		t.Error("Remove() existing entry = false")
	}
	if l.Remove("u2") {
		t.Error("Remove() absent entry = true, want no-op false")
	}
	if !reflect.DeepEqual(l.RefIDs(), []string{"u1", "u3"}) {
		t.Errorf("RefIDs() after remove = %v", l.RefIDs())
	}
}

func Test_Links_ParseRenderRoundTrip(t *testing.T) {
	stored := []any{
		map[string]any{"_id": "e1", "users": "u1", "role": "member"},
		map[string]any{"_id": "e2", "users": "u2"},
		map[string]any{"malformed": true},
	}

	l := ParseLinks(stored, "users")
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want malformed entry dropped", l.Len())
	}

	rendered := l.Render()
	want := []any{
		map[string]any{"_id": "e1", "users": "u1", "role": "member"},
		map[string]any{"_id": "e2", "users": "u2"},
	}
	if !reflect.DeepEqual(rendered, want) {
		t.Errorf("Render() = %v, want %v", rendered, want)
	}
}
