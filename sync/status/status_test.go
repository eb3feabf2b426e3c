package status_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marginy605/weblate-sync/sync/status"
	"github.com/Marginy605/weblate-sync/sync/weblate"
	"github.com/Marginy605/weblate-sync/sync/weblate/weblatetest"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		repo            weblate.RepositoryStatus
		wantMerge       bool
		wantNeedsCommit bool
		wantNeedsPush   bool
	}{
		{
			name: "clean",
			repo: weblate.RepositoryStatus{},
		},
		{
			name: "merge failure message",
			repo: weblate.RepositoryStatus{
				MergeFailure: "CONFLICT in common",
			},
			wantMerge: true,
		},
		{
			name: "needs merge flag",
			repo: weblate.RepositoryStatus{
				NeedsMerge: true,
			},
			wantMerge: true,
		},
		{
			name: "needs commit",
			repo: weblate.RepositoryStatus{
				NeedsCommit: true,
			},
			wantNeedsCommit: true,
		},
		{
			name: "needs push",
			repo: weblate.RepositoryStatus{
				NeedsPush: true,
			},
			wantNeedsPush: true,
		},
		{
			name: "independent conditions",
			repo: weblate.RepositoryStatus{
				NeedsCommit: true,
				NeedsPush:   true,
			},
			wantNeedsCommit: true,
			wantNeedsPush:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := weblatetest.New()
			fake.Status["common"] = tt.repo

			got, err := status.Classify(
				context.Background(),
				fake,
				"common",
				"master",
			)
			require.NoError(t, err)

			assert.Equal(
				t,
				tt.wantMerge,
				got.MergeFailure != "",
			)
			assert.Equal(
				t,
				tt.wantNeedsCommit,
				got.NeedsCommit != "",
			)
			assert.Equal(
				t,
				tt.wantNeedsPush,
				got.NeedsPush != "",
			)
		})
	}
}

func TestClassify_messagesNameComponent(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	fake.Status["billing"] = weblate.RepositoryStatus{
		MergeFailure: "CONFLICT",
		NeedsPush:    true,
	}

	got, err := status.Classify(
		context.Background(),
		fake,
		"billing",
		"master",
	)
	require.NoError(t, err)

	assert.Contains(t, got.MergeFailure, "billing")
	assert.Contains(t, got.MergeFailure, "CONFLICT")
	assert.Contains(t, got.NeedsPush, "push")
}
