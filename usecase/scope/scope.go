// Package scope implements the document scope algebra: a caller's granted
// scope set is evaluated against a document's declared scope list, where
// each list entry is a plain token (at least one must be held), a '!'
// prefixed token (must not be held), or a '+' prefixed token (must be held).
package scope

import (
	"strings"

	"github.com/reisap/rest-hapi/repository/document"
)

// Action is the operation a caller attempts on a document. It is computed
// once at the boundary and passed around as a value; nothing infers it from
// request shape.
type Action string

const (
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionAssociate Action = "associate"
)

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionUpdate, ActionDelete, ActionAssociate:
		return true
	}
	return false
}

const (
	forbiddenPrefix = "!"
	requiredPrefix  = "+"
)

// Compare evaluates the caller's scope set against one effective document
// scope list. Checks run in fixed order and short-circuit: forbidden tokens
// first, then required tokens, then the general at-least-one-of set.
//
// An empty documentScope authorizes any caller; absence of policy means
// unrestricted.
func Compare(callerScope []string, documentScope []string) bool {
	if len(documentScope) == 0 {
		return true
	}

	caller := make(map[string]struct{}, len(callerScope))
	for _, s := range callerScope {
		caller[s] = struct{}{}
	}

	var general []string

	for _, token := range documentScope {
		switch {
		case strings.HasPrefix(token, forbiddenPrefix):
			if _, held := caller[strings.TrimPrefix(token, forbiddenPrefix)]; held {
				return false
			}
		case strings.HasPrefix(token, requiredPrefix):
			if _, held := caller[strings.TrimPrefix(token, requiredPrefix)]; !held {
				return false
			}
		default:
			general = append(general, token)
		}
	}

	if len(general) > 0 {
		for _, token := range general {
			if _, held := caller[token]; held {
				return true
			}
		}
		return false
	}

	return true
}

// PolicyField is the document field carrying the scope policy object.
const PolicyField = "scope"

// Policy is a document's declared scope policy: a global list applying to
// every action plus one optional list per action.
type Policy struct {
	Scope     []string `json:"scope,omitempty"`
	Read      []string `json:"readScope,omitempty"`
	Update    []string `json:"updateScope,omitempty"`
	Delete    []string `json:"deleteScope,omitempty"`
	Associate []string `json:"associateScope,omitempty"`
}

// ParsePolicy extracts the policy object from a loaded document. A missing
// or malformed policy parses as the zero Policy (unrestricted).
func ParsePolicy(d document.Data) Policy {
	raw, ok := d[PolicyField].(map[string]any)
	if !ok {
		return Policy{}
	}
	sub := document.Data(raw)
	return Policy{
		Scope:     sub.StringSlice("scope"),
		Read:      sub.StringSlice("readScope"),
		Update:    sub.StringSlice("updateScope"),
		Delete:    sub.StringSlice("deleteScope"),
		Associate: sub.StringSlice("associateScope"),
	}
}

// Effective composes the scope list used for one authorization decision.
// A non-empty global list is concatenated with the action list; an empty
// global list yields the action list alone, never an empty combination of
// both. Callers must not normalize the two cases.
func (p Policy) Effective(a Action) []string {
	var action []string
	switch a {
	case ActionRead:
		action = p.Read
	case ActionUpdate:
		action = p.Update
	case ActionDelete:
		action = p.Delete
	case ActionAssociate:
		action = p.Associate
	}

	if len(p.Scope) == 0 {
		return action
	}

	out := make([]string, 0, len(p.Scope)+len(action))
	out = append(out, p.Scope...)
	out = append(out, action...)
	return out
}

// Empty reports whether no list in the policy carries any token.
func (p Policy) Empty() bool {
	return len(p.Scope) == 0 && len(p.Read) == 0 && len(p.Update) == 0 &&
		len(p.Delete) == 0 && len(p.Associate) == 0
}
