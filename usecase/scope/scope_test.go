package scope

import (
	"reflect"
	"testing"

	"github.com/reisap/rest-hapi/repository/document"
)

func Test_Compare(t *testing.T) {
	type args struct {
		callerScope   []string
		documentScope []string
	}
	tests := []struct {
		name string
		args args
		want bool
	}{
		{
			name: "empty document scope authorizes anyone",
			args: args{
				callerScope:   nil,
				documentScope: nil,
			},
			want: true,
		},
		{
			name: "empty document scope authorizes empty caller",
			args: args{
				callerScope:   []string{},
				documentScope: []string{},
			},
			want: true,
		},
		{
			name: "forbidden token held",
			args: args{
				callerScope:   []string{"admin", "read"},
				documentScope: []string{"!admin", "read"},
			},
			want: false,
		},
		{
			name: "forbidden token not held",
			args: args{
				callerScope:   []string{"read"},
				documentScope: []string{"!admin", "read"},
			},
			want: true,
		},
		{
			name: "required token missing",
			args: args{
				callerScope:   []string{"read", "write"},
				documentScope: []string{"+verified", "read"},
			},
			want: false,
		},
		{
			name: "required token held",
			args: args{
				callerScope:   []string{"verified"},
				documentScope: []string{"+verified"},
			},
			want: true,
		},
		{
			name: "general tokens no intersection",
			args: args{
				callerScope:   []string{"other"},
				documentScope: []string{"read", "write"},
			},
			want: false,
		},
		{
			name: "general tokens with intersection",
			args: args{
				callerScope:   []string{"write"},
				documentScope: []string{"read", "write"},
			},
			want: true,
		},
		{
			name: "forbidden beats general match",
			args: args{
				callerScope:   []string{"admin", "read"},
				documentScope: []string{"read", "!admin"},
			},
			want: false,
		},
		{
			name: "required and general both satisfied",
			args: args{
				callerScope:   []string{"verified", "read"},
				documentScope: []string{"+verified", "read", "write"},
			},
			want: true,
		},
		{
			name: "required satisfied but no general token held",
			args: args{
				callerScope:   []string{"verified"},
				documentScope: []string{"+verified", "read", "write"},
			},
			want: false,
		},
		{
			name: "only prefixed tokens and none violated",
			args: args{
				callerScope:   []string{"verified"},
				documentScope: []string{"+verified", "!banned"},
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.args.callerScope, tt.args.documentScope); got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
			// deterministic and side-effect free
			if again := Compare(tt.args.callerScope, tt.args.documentScope); again != tt.want {
				t.Errorf("Compare() second call = %v, want %v", again, tt.want)
			}
		})
	}
}

func Test_Policy_Effective(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		action Action
		want   []string
	}{
		{
			name:   "global combines with action scope",
			policy: Policy{Scope: []string{"user"}, Read: []string{"+verified"}},
			action: ActionRead,
			want:   []string{"user", "+verified"},
		},
		{
			name:   "empty global yields action scope alone",
			policy: Policy{Read: []string{"+verified"}},
			action: ActionRead,
			want:   []string{"+verified"},
		},
		{
			name:   "global alone when action scope empty",
			policy: Policy{Scope: []string{"user"}},
			action: ActionDelete,
			want:   []string{"user"},
		},
		{
			name:   "no policy at all",
			policy: Policy{},
			action: ActionUpdate,
			want:   nil,
		},
		{
			name:   "action selects the matching list",
			policy: Policy{Update: []string{"editor"}, Delete: []string{"owner"}},
			action: ActionDelete,
			want:   []string{"owner"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Effective(tt.action); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Effective() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_ParsePolicy(t *testing.T) {
	d := document.Data{
		"_id": "1",
		"scope": map[string]any{
			"scope":          []any{"user"},
			"readScope":      []any{"read"},
			"updateScope":    []any{"+editor"},
			"deleteScope":    []any{"!guest"},
			"associateScope": []any{"linker"},
		},
	}

	got := ParsePolicy(d)
	want := Policy{
		Scope:     []string{"user"},
		Read:      []string{"read"},
		Update:    []string{"+editor"},
		Delete:    []string{"!guest"},
		Associate: []string{"linker"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParsePolicy() = %+v, want %+v", got, want)
	}

	if p := ParsePolicy(document.Data{"_id": "2"}); !p.Empty() {
		t.Errorf("ParsePolicy() without policy = %+v, want empty", p)
	}
}
