// Package query turns generic request parameters into the repository query
// form. Reserved parameters start with '$'; anything else is a field filter.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

const (
	paramLimit  = "$limit"
	paramSkip   = "$skip"
	paramSort   = "$sort"
	paramSelect = "$select"
	paramEmbed  = "$embed"
)

// Parse builds a repository query from URL parameters.
//
//	$limit, $skip   paging
//	$sort           field name, '-' prefix for descending
//	$select         comma-separated field list
//	$embed          comma-separated association names (returned separately)
//	field=a         equality filter
//	field=a,b,c     membership filter
//
// Unknown '$' parameters are a BAD_REQUEST.
func Parse(values url.Values) (document.Query, []string, *types.CommonError) {
	q := document.Query{Filter: document.Filter{}}
	var embed []string

	for param, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		value := vals[0]

		switch param {
		case paramLimit:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return q, nil, types.NewError(types.KindBadRequest, "'$limit' must be a non-negative integer")
			}
			q.Limit = n
		case paramSkip:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return q, nil, types.NewError(types.KindBadRequest, "'$skip' must be a non-negative integer")
			}
			q.Skip = n
		case paramSort:
			q.Sort = value
		case paramSelect:
			q.Select = splitList(value)
		case paramEmbed:
			embed = splitList(value)
		default:
			if strings.HasPrefix(param, "$") {
				return q, nil, types.NewError(types.KindBadRequest, "unknown parameter '"+param+"'")
			}
			if parts := splitList(value); len(parts) > 1 {
				q.Filter[param] = document.In{Values: parts}
			} else {
				q.Filter[param] = value
			}
		}
	}

	return q, embed, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
