package git

import (
	"reflect"
	"testing"
	"time"
)

func TestSelectBranchesToDelete(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2024, 6, 14, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		branches []RemoteBranch
		want     []string
	}{
		{
			name: "keeps newest per hour",
			branches: []RemoteBranch{
				{Name: "patch/c", CommittedAt: at(10, 45)},
				{Name: "patch/b", CommittedAt: at(10, 30)},
				{Name: "patch/a", CommittedAt: at(10, 5)},
				{Name: "patch/old", CommittedAt: at(9, 50)},
			},
			want: []string{"patch/b", "patch/a"},
		},
		{
			name: "distinct hours all kept",
			branches: []RemoteBranch{
				{Name: "patch/three", CommittedAt: at(12, 0)},
				{Name: "patch/two", CommittedAt: at(11, 0)},
				{Name: "patch/one", CommittedAt: at(10, 0)},
			},
			want: nil,
		},
		{
			name:     "empty list",
			branches: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBranchesToDelete(tt.branches)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SelectBranchesToDelete = %v, want %v", got, tt.want)
			}
		})
	}
}
