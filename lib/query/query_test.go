package query

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

func Test_Parse(t *testing.T) {
	tests := []struct {
		name      string
		rawQuery  string
		want      document.Query
		wantEmbed []string
		wantErr   bool
	}{
		{
			name:     "empty",
			rawQuery: "",
			want:     document.Query{Filter: document.Filter{}},
		},
		{
			name:     "paging",
			rawQuery: "$limit=10&$skip=20",
			want:     document.Query{Filter: document.Filter{}, Limit: 10, Skip: 20},
		},
		{
			name:     "sort descending",
			rawQuery: "$sort=-createdAt",
			want:     document.Query{Filter: document.Filter{}, Sort: "-createdAt"},
		},
		{
			name:     "select fields",
			rawQuery: "$select=name,email",
			want:     document.Query{Filter: document.Filter{}, Select: []string{"name", "email"}},
		},
		{
			name:      "embed associations",
			rawQuery:  "$embed=groups,posts",
			want:      document.Query{Filter: document.Filter{}},
			wantEmbed: []string{"groups", "posts"},
		},
		{
			name:     "equality filter",
			rawQuery: "status=active",
			want:     document.Query{Filter: document.Filter{"status": "active"}},
		},
		{
			name:     "membership filter",
			rawQuery: "status=active,pending",
			want: document.Query{Filter: document.Filter{
				"status": document.In{Values: []string{"active", "pending"}},
			}},
		},
		{
			name:     "negative limit",
			rawQuery: "$limit=-1",
			wantErr:  true,
		},
		{
			name:     "non-numeric skip",
			rawQuery: "$skip=abc",
			wantErr:  true,
		},
		{
			name:     "unknown reserved parameter",
			rawQuery: "$where=1",
			wantErr:  true,
		},
		{
			name:     "empty value is ignored",
			rawQuery: "status=",
			want:     document.Query{Filter: document.Filter{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.rawQuery)
			if err != nil {
				t.Fatalf("bad fixture: %v", err)
			}

			q, embed, perr := Parse(values)
			if (perr != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", perr, tt.wantErr)
			}
			if perr != nil {
				if perr.Kind() != types.KindBadRequest {
					t.Errorf("Parse() kind = %v, want BAD_REQUEST", perr.Kind())
				}
				return
			}
			if !reflect.DeepEqual(q, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", q, tt.want)
			}
			if !reflect.DeepEqual(embed, tt.wantEmbed) {
				t.Errorf("Parse() embed = %v, want %v", embed, tt.wantEmbed)
			}
		})
	}
}
