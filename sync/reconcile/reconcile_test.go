package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marginy605/weblate-sync/sync/discover"
	"github.com/Marginy605/weblate-sync/sync/reconcile"
	"github.com/Marginy605/weblate-sync/sync/weblate"
	"github.com/Marginy605/weblate-sync/sync/weblate/weblatetest"
)

// groups builds a group list whose first element owns
// the VCS binding.
func groups(names ...string) []discover.Group {
	var out []discover.Group

	for i, name := range names {
		out = append(out, discover.Group{
			Name:     name,
			Source:   "i18n/" + name + "/en.json",
			FileMask: "i18n/" + name + "/*.json",
			Owner:    i == 0,
		})
	}

	return out
}

func newEngine(
	fake *weblatetest.Fake,
) *reconcile.Engine {
	return &reconcile.Engine{
		Client:      fake,
		Repo:        "https://git.example.com/app.git",
		Branch:      "master",
		Parallelism: 2,
	}
}

func TestSuffixName(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t, "common", reconcile.SuffixName("common", 0),
	)
	assert.Equal(
		t,
		"common__42",
		reconcile.SuffixName("common", 42),
	)
}

func TestApply_singleOwnerInvariant(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")

	eng := newEngine(fake)

	err := eng.Apply(
		context.Background(),
		cat,
		groups("common", "billing", "profile"),
		reconcile.Options{},
	)
	require.NoError(t, err)

	comps, err := fake.ComponentsInCategory(
		context.Background(), cat.ID,
	)
	require.NoError(t, err)
	require.Len(t, comps, 3)

	var owners int
	for _, c := range comps {
		if c.LinkedComponent == "" {
			owners++

			assert.Equal(t, "common", c.Name)
			assert.Equal(
				t,
				"https://git.example.com/app.git",
				c.Repo,
			)
		} else {
			assert.Equal(
				t, "common", c.LinkedComponent,
			)
		}
	}

	assert.Equal(t, 1, owners)
}

func TestApply_prSuffix(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master__42")

	eng := newEngine(fake)

	err := eng.Apply(
		context.Background(),
		cat,
		groups("common", "billing"),
		reconcile.Options{
			PullRequestNumber: 42,
			PullRequestAuthor: "octocat",
		},
	)
	require.NoError(t, err)

	names := fake.ComponentNames(cat.ID)
	assert.ElementsMatch(
		t,
		[]string{"common__42", "billing__42"},
		names,
	)
}

func TestApply_reusesExistingMain(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")
	fake.SeedComponent(cat.ID, weblate.Component{
		Name: "common",
		Slug: "common",
		Repo: "https://git.example.com/app.git",
	})

	eng := newEngine(fake)

	err := eng.Apply(
		context.Background(),
		cat,
		groups("common", "billing"),
		reconcile.Options{UpdateIfExist: true},
	)
	require.NoError(t, err)

	// The pre-existing main stays the single owner;
	// only the second group is created, as a link.
	comps, err := fake.ComponentsInCategory(
		context.Background(), cat.ID,
	)
	require.NoError(t, err)
	require.Len(t, comps, 2)

	billing := fake.Component(cat.ID, "billing")
	require.NotNil(t, billing)
	assert.Equal(
		t, "common", billing.LinkedComponent,
	)
}

func TestApply_emptyGroups(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")

	eng := newEngine(fake)

	err := eng.Apply(
		context.Background(),
		cat,
		nil,
		reconcile.Options{},
	)
	require.NoError(t, err)
	assert.Empty(t, fake.ComponentNames(cat.ID))
}

func TestApply_firstErrorPropagates(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")

	errBoom := errors.New("boom")
	fake.FailCreate["billing"] = errBoom

	eng := newEngine(fake)

	err := eng.Apply(
		context.Background(),
		cat,
		groups("common", "billing"),
		reconcile.Options{},
	)
	assert.ErrorIs(t, err, errBoom)
}

func TestApply_idempotentSecondRun(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")

	eng := newEngine(fake)
	ctx := context.Background()
	gs := groups("common", "billing")

	require.NoError(t, eng.Apply(
		ctx, cat, gs, reconcile.Options{},
	))

	first := fake.ComponentNames(cat.ID)

	// Second run converges instead of failing on
	// duplicate names.
	require.NoError(t, eng.Apply(
		ctx, cat, gs,
		reconcile.Options{UpdateIfExist: true},
	))

	assert.ElementsMatch(
		t, first, fake.ComponentNames(cat.ID),
	)
}

func TestCloneCategory(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	trunk := fake.SeedCategory("master")
	fake.SeedComponent(trunk.ID, weblate.Component{
		Name:     "common",
		Slug:     "common",
		Repo:     "https://git.example.com/app.git",
		FileMask: "i18n/common/*.json",
		Template: "i18n/common/en.json",
	})
	fake.SeedComponent(trunk.ID, weblate.Component{
		Name:            "billing",
		Slug:            "billing",
		Repo:            "weblate://project/common",
		LinkedComponent: "common",
		FileMask:        "i18n/billing/*.json",
		Template:        "i18n/billing/en.json",
	})

	pr := fake.SeedCategory("master__42")

	eng := newEngine(fake)

	names, err := eng.CloneCategory(
		context.Background(),
		trunk, pr, 42, "octocat",
	)
	require.NoError(t, err)
	assert.ElementsMatch(
		t,
		[]string{"common__42", "billing__42"},
		names,
	)

	// Every clone links to the trunk main and carries
	// its origin's file mask.
	common := fake.Component(pr.ID, "common__42")
	require.NotNil(t, common)
	assert.Equal(t, "common", common.LinkedComponent)
	assert.Equal(
		t, "i18n/common/*.json", common.FileMask,
	)

	billing := fake.Component(pr.ID, "billing__42")
	require.NotNil(t, billing)
	assert.Equal(
		t, "common", billing.LinkedComponent,
	)
}

func TestCloneCategory_noMainComponent(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	trunk := fake.SeedCategory("master")
	fake.SeedComponent(trunk.ID, weblate.Component{
		Name:            "a",
		Slug:            "a",
		Repo:            "weblate://project/x",
		LinkedComponent: "x",
	})

	pr := fake.SeedCategory("master__42")

	eng := newEngine(fake)

	names, err := eng.CloneCategory(
		context.Background(),
		trunk, pr, 42, "octocat",
	)
	assert.Nil(t, names)
	assert.ErrorIs(
		t, err, weblate.ErrNoMainComponent,
	)
}

func TestRemoveMissing(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")

	eng := newEngine(fake)
	ctx := context.Background()

	require.NoError(t, eng.Apply(
		ctx,
		cat,
		groups("common", "billing", "legacy"),
		reconcile.Options{},
	))

	// "legacy" disappeared from code.
	require.NoError(t, eng.RemoveMissing(
		ctx, cat, groups("common", "billing"), 0,
	))

	assert.ElementsMatch(
		t,
		[]string{"common", "billing"},
		fake.ComponentNames(cat.ID),
	)
}

func TestRemoveMissing_prSuffix(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master__42")

	eng := newEngine(fake)
	ctx := context.Background()

	require.NoError(t, eng.Apply(
		ctx,
		cat,
		groups("common", "legacy"),
		reconcile.Options{PullRequestNumber: 42},
	))

	require.NoError(t, eng.RemoveMissing(
		ctx, cat, groups("common"), 42,
	))

	assert.ElementsMatch(
		t,
		[]string{"common__42"},
		fake.ComponentNames(cat.ID),
	)
}

func TestRemoveMissing_setEquality(t *testing.T) {
	t.Parallel()

	fake := weblatetest.New()
	cat := fake.SeedCategory("master")

	eng := newEngine(fake)
	ctx := context.Background()

	require.NoError(t, eng.Apply(
		ctx,
		cat,
		groups("a", "b", "c"),
		reconcile.Options{},
	))

	want := groups("a", "c")

	require.NoError(t, eng.RemoveMissing(
		ctx, cat, want, 0,
	))

	var wantNames []string
	for _, g := range want {
		wantNames = append(wantNames, g.Name)
	}

	assert.ElementsMatch(
		t,
		wantNames,
		fake.ComponentNames(cat.ID),
	)
}
