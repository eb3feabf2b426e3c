package discover

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Group is one discovered translatable resource group.
type Group struct {
	// Name is a stable identifier derived from the
	// directory structure. Unique within one discovery
	// pass.
	Name string

	// Source is the path of the main-language resource
	// file.
	Source string

	// FileMask is a glob matching every per-language
	// resource file in the group.
	FileMask string

	// Owner marks the single group that owns the VCS
	// binding. Every other group links to the owner's
	// checkout.
	Owner bool
}

// Config holds discovery settings.
type Config struct {
	// Root is a concrete keysets directory, or a glob
	// pattern selecting several keyset directories.
	Root string

	// MainLanguage is the language code of the source
	// files (e.g. "en").
	MainLanguage string

	// Anchor is the path segment whose successor names
	// the project prefix in glob mode. Defaults to
	// "projects".
	Anchor string
}

// defaultAnchor is the path segment used to derive the
// project prefix when Config.Anchor is empty.
const defaultAnchor = "projects"

// skipSegments are never considered during glob
// expansion.
var skipSegments = map[string]struct{}{
	".git":         {},
	".hg":          {},
	"node_modules": {},
	"vendor":       {},
}

// Discover lists the resource groups present under
// cfg.Root. The first group listed is designated the
// owner. In glob mode an unreadable matched directory is
// logged and skipped; it never fails the pass. Output
// order follows the directory read order, so identical
// filesystem state yields identical results.
func Discover(cfg Config) ([]Group, error) {
	const errCtx = "discovering resource groups"

	anchor := cfg.Anchor
	if anchor == "" {
		anchor = defaultAnchor
	}

	var (
		groups []Group
		err    error
	)

	if hasGlobMeta(cfg.Root) {
		groups, err = discoverGlob(
			cfg.Root, anchor, cfg.MainLanguage,
		)
	} else {
		groups, err = discoverDir(
			cfg.Root, cfg.MainLanguage,
		)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(groups) > 0 {
		groups[0].Owner = true
	}

	return groups, nil
}

// discoverDir treats root as one concrete directory and
// produces a group per immediate non-hidden
// subdirectory, named after the subdirectory verbatim.
func discoverDir(
	root string,
	mainLanguage string,
) ([]Group, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf(
			"reading %s: %w", root, err,
		)
	}

	var groups []Group

	for _, entry := range entries {
		if !isKeysetDir(entry) {
			continue
		}

		groups = append(groups, newGroup(
			entry.Name(),
			filepath.Join(root, entry.Name()),
			mainLanguage,
		))
	}

	return groups, nil
}

// discoverGlob expands pattern against the working
// directory and produces groups for each matched
// directory's immediate non-hidden subdirectories. Group
// names carry a project prefix to stay unique when the
// same keyset layout repeats under several project
// roots.
func discoverGlob(
	pattern string,
	anchor string,
	mainLanguage string,
) ([]Group, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf(
			"expanding pattern %q: %w", pattern, err,
		)
	}

	var groups []Group

	for _, dir := range matches {
		if hasSkippedSegment(dir) {
			continue
		}

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn(
				"skipping unreadable directory",
				"dir", dir,
				"error", err,
			)

			continue
		}

		prefix := projectPrefix(dir, anchor)

		for _, entry := range entries {
			if !isKeysetDir(entry) {
				continue
			}

			groups = append(groups, newGroup(
				prefix+"_"+entry.Name(),
				filepath.Join(dir, entry.Name()),
				mainLanguage,
			))
		}
	}

	return groups, nil
}

// newGroup builds a Group for the keyset directory at
// dir. Paths use forward slashes regardless of the host
// separator because they end up in platform file masks.
func newGroup(
	name string,
	dir string,
	mainLanguage string,
) Group {
	slashed := filepath.ToSlash(dir)

	return Group{
		Name:     name,
		Source:   slashed + "/" + mainLanguage + ".json",
		FileMask: slashed + "/*.json",
	}
}

// projectPrefix returns the path segment immediately
// following the anchor segment in dir. When the anchor
// is absent it falls back to the matched directory's own
// parent name.
func projectPrefix(dir string, anchor string) string {
	segments := strings.Split(
		filepath.ToSlash(dir), "/",
	)

	for i, seg := range segments {
		if seg == anchor && i+1 < len(segments) {
			return segments[i+1]
		}
	}

	return filepath.Base(filepath.Dir(dir))
}

// isKeysetDir reports whether entry is a non-hidden
// directory.
func isKeysetDir(entry os.DirEntry) bool {
	return entry.IsDir() &&
		!strings.HasPrefix(entry.Name(), ".")
}

// hasGlobMeta reports whether path contains glob
// metacharacters.
func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// hasSkippedSegment reports whether any path segment is
// a version-control or dependency directory.
func hasSkippedSegment(dir string) bool {
	for _, seg := range strings.Split(
		filepath.ToSlash(dir), "/",
	) {
		if _, ok := skipSegments[seg]; ok {
			return true
		}
	}

	return false
}
