package discover_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marginy605/weblate-sync/sync/discover"
)

// mkKeysets creates dir with one subdirectory per name,
// each holding an en.json file.
func mkKeysets(
	t *testing.T,
	dir string,
	names ...string,
) {
	t.Helper()

	for _, name := range names {
		sub := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(sub, 0o755))

		fp := filepath.Join(sub, "en.json")
		require.NoError(
			t, os.WriteFile(fp, []byte("{}"), 0o600),
		)
	}
}

func TestDiscover_directPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkKeysets(t, dir, "component1", "component2")

	groups, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byName := map[string]discover.Group{}
	for _, g := range groups {
		byName[g.Name] = g
	}

	g1, ok := byName["component1"]
	require.True(t, ok)

	want := filepath.ToSlash(
		filepath.Join(dir, "component1"),
	)
	assert.Equal(t, want+"/en.json", g1.Source)
	assert.Equal(t, want+"/*.json", g1.FileMask)
}

func TestDiscover_directPath_ownerIsFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkKeysets(t, dir, "alpha", "beta")

	groups, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.True(t, groups[0].Owner)
	assert.False(t, groups[1].Owner)
}

func TestDiscover_directPath_skipsHidden(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkKeysets(t, dir, "visible", ".hidden")

	groups, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "visible", groups[0].Name)
}

func TestDiscover_directPath_skipsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkKeysets(t, dir, "keyset")

	fp := filepath.Join(dir, "stray.json")
	require.NoError(
		t, os.WriteFile(fp, []byte("{}"), 0o600),
	)

	groups, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "keyset", groups[0].Name)
}

func TestDiscover_directPath_empty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	groups, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDiscover_directPath_missing(t *testing.T) {
	t.Parallel()

	groups, err := discover.Discover(discover.Config{
		Root:         filepath.Join(t.TempDir(), "nope"),
		MainLanguage: "en",
	})
	assert.Error(t, err)
	assert.Nil(t, groups)
}

func TestDiscover_glob_anchorNaming(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	keysets := filepath.Join(
		root,
		"projects", "project-a", "src", "i18n-keysets",
	)
	mkKeysets(t, keysets, "component1")

	groups, err := discover.Discover(discover.Config{
		Root: filepath.Join(
			root,
			"projects", "*", "src", "i18n-keysets",
		),
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// The segment after "projects" names the prefix.
	assert.Equal(
		t, "project-a_component1", groups[0].Name,
	)

	wantDir := filepath.ToSlash(
		filepath.Join(keysets, "component1"),
	)
	assert.Equal(
		t, wantDir+"/en.json", groups[0].Source,
	)
	assert.Equal(
		t, wantDir+"/*.json", groups[0].FileMask,
	)
	assert.True(t, groups[0].Owner)
}

func TestDiscover_glob_parentFallback(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	keysets := filepath.Join(
		root, "apps", "web", "i18n",
	)
	mkKeysets(t, keysets, "common")

	groups, err := discover.Discover(discover.Config{
		Root: filepath.Join(
			root, "apps", "*", "i18n",
		),
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// No "projects" anchor in the path: the matched
	// directory's parent names the prefix.
	assert.Equal(t, "web_common", groups[0].Name)
}

func TestDiscover_glob_customAnchor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	keysets := filepath.Join(
		root, "services", "billing", "i18n",
	)
	mkKeysets(t, keysets, "invoices")

	groups, err := discover.Discover(discover.Config{
		Root: filepath.Join(
			root, "services", "*", "i18n",
		),
		MainLanguage: "en",
		Anchor:       "services",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "billing_invoices", groups[0].Name)
}

func TestDiscover_glob_unreadableIsolated(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not " +
			"enforced for root")
	}

	root := t.TempDir()

	good := filepath.Join(root, "apps", "good", "i18n")
	mkKeysets(t, good, "common")

	bad := filepath.Join(root, "apps", "bad", "i18n")
	mkKeysets(t, bad, "secret")
	require.NoError(t, os.Chmod(bad, 0o000))
	t.Cleanup(func() {
		_ = os.Chmod(bad, 0o755)
	})

	groups, err := discover.Discover(discover.Config{
		Root: filepath.Join(
			root, "apps", "*", "i18n",
		),
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "good_common", groups[0].Name)
}

func TestDiscover_glob_noMatches(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	groups, err := discover.Discover(discover.Config{
		Root: filepath.Join(
			root, "nothing", "*", "i18n",
		),
		MainLanguage: "en",
	})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDiscover_glob_skipsVendorDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	real := filepath.Join(root, "apps", "web", "i18n")
	mkKeysets(t, real, "common")

	dep := filepath.Join(
		root, "node_modules", "pkg", "i18n",
	)
	mkKeysets(t, dep, "common")

	groups, err := discover.Discover(discover.Config{
		Root: filepath.Join(
			root, "**", "i18n",
		),
		MainLanguage: "en",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "web_common", groups[0].Name)
}

func TestDiscover_deterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkKeysets(t, dir, "a", "b", "c")

	first, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)

	second, err := discover.Discover(discover.Config{
		Root:         dir,
		MainLanguage: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
