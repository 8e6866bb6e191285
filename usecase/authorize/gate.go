// Package authorize enforces document scope policies around repository
// operations: a pre-check before mutations and a post-check after reads.
package authorize

import (
	"context"

	"github.com/reisap/rest-hapi/config"
	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
	"github.com/reisap/rest-hapi/usecase/scope"
)

// RedactedMessage replaces unauthorized documents in lenient list reads.
const RedactedMessage = "Insufficient document scope."

// Gate evaluates caller scopes against document policies. Stateless apart
// from its options; safe for concurrent use.
type Gate struct {
	opts config.Options
}

func New(opts config.Options) *Gate {
	return &Gate{opts: opts}
}

// PreResult is the verdict of a pre-check.
type PreResult struct {
	// Authorized is true when the operation may proceed, possibly with
	// UnauthorizedIDs dropped from its payload.
	Authorized bool

	// UnauthorizedIDs lists target documents that failed the check. Only
	// populated on lenient deletes; the caller must exclude them before
	// mutating.
	UnauthorizedIDs []string
}

// PreAuthorize checks a mutating or reading action against the policies of
// all target documents, fetched in a single filtered read of their scope
// metadata. Documents without a policy, or with an empty effective scope
// for the action, never block. Ids that match no document never block
// either; their absence is the operation's concern, not authorization's.
//
// On violations: a lenient delete proceeds with the offending ids reported
// for dropping; every other case is FORBIDDEN and nothing may be mutated.
func (g *Gate) PreAuthorize(ctx context.Context, repo document.Repository, action scope.Action, ids []string, callerScope []string) (PreResult, *types.CommonError) {
	if !action.Valid() {
		return PreResult{}, types.NewError(types.KindInternal, "unknown action '"+string(action)+"'")
	}
	if len(ids) == 0 {
		return PreResult{Authorized: true}, nil
	}

	q := document.ByIDs(ids)
	q.Select = []string{scope.PolicyField}
	docs, err := repo.Find(ctx, q)
	if err != nil {
		return PreResult{}, types.NewError(types.KindInternal, "failed to load document scope metadata: "+err.Err().Error())
	}

	var unauthorized []string
	for _, d := range docs {
		policy := scope.ParsePolicy(d)
		effective := policy.Effective(action)
		if len(effective) == 0 {
			continue
		}
		if !scope.Compare(callerScope, effective) {
			unauthorized = append(unauthorized, d.ID())
		}
	}

	if len(unauthorized) == 0 {
		return PreResult{Authorized: true}, nil
	}

	if action == scope.ActionDelete && !g.opts.EnableDocumentScopeFail {
		return PreResult{Authorized: true, UnauthorizedIDs: unauthorized}, nil
	}

	return PreResult{UnauthorizedIDs: unauthorized},
		types.NewError(types.KindForbidden, "Insufficient scope to perform this action on the target document(s)")
}

// PostAuthorizeOne checks a single read result. Any violation is FORBIDDEN.
func (g *Gate) PostAuthorizeOne(d document.Data, callerScope []string) *types.CommonError {
	if d == nil {
		return nil
	}
	effective := scope.ParsePolicy(d).Effective(scope.ActionRead)
	if len(effective) == 0 {
		return nil
	}
	if !scope.Compare(callerScope, effective) {
		return types.NewError(types.KindForbidden, RedactedMessage)
	}
	return nil
}

// PostAuthorizeMany checks a list read. In strict mode any violation fails
// the whole list with FORBIDDEN. In lenient mode each unauthorized document
// is replaced in place with an error placeholder and the read succeeds.
func (g *Gate) PostAuthorizeMany(docs []document.Data, callerScope []string) ([]document.Data, *types.CommonError) {
	out := make([]document.Data, len(docs))
	for i, d := range docs {
		if err := g.PostAuthorizeOne(d, callerScope); err != nil {
			if g.opts.EnableDocumentScopeFail {
				return nil, err
			}
			out[i] = document.Data{"error": RedactedMessage}
			continue
		}
		out[i] = d
	}
	return out, nil
}
