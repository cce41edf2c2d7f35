package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/quietpost/quietpost/pkg/domain"
)

func TestMapConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "nil error passes through",
			err:  nil,
			want: nil,
		},
		{
			name: "handle unique violation",
			err:  &pq.Error{Code: "23505", Constraint: handleUniqueIndex},
			want: domain.ErrHandleTaken,
		},
		{
			name: "email unique violation",
			err:  &pq.Error{Code: "23505", Constraint: emailUniqueIndex},
			want: domain.ErrEmailTaken,
		},
		{
			name: "unique violation on unknown constraint passes through",
			err:  &pq.Error{Code: "23505", Constraint: "something_else"},
			want: &pq.Error{Code: "23505", Constraint: "something_else"},
		},
		{
			name: "other pq error passes through",
			err:  &pq.Error{Code: "57014"},
			want: &pq.Error{Code: "57014"},
		},
		{
			name: "wrapped unique violation is still mapped",
			err:  fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: emailUniqueIndex}),
			want: domain.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapConflict(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("mapConflict() = %v, want nil", got)
				}
				return
			}
			if errors.Is(tt.want, domain.ErrHandleTaken) || errors.Is(tt.want, domain.ErrEmailTaken) {
				if !errors.Is(got, tt.want) {
					t.Errorf("mapConflict() = %v, want %v", got, tt.want)
				}
				return
			}
			// Non-conflict errors must come back unchanged.
			if !errors.Is(got, tt.err) {
				t.Errorf("mapConflict() = %v, want original error %v", got, tt.err)
			}
		})
	}
}
