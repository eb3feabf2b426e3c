package weblate

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNoMainComponent is returned when a category holds
// no component that owns the VCS binding. Callers must
// treat this as an explicit state instead of guessing an
// owner from list order.
var ErrNoMainComponent = errors.New(
	"category has no main component",
)

// Category is the platform-side container mirroring one
// source-control branch.
type Category struct {
	// ID is the platform identifier.
	ID int `json:"id"`

	// Name is the branch name the category mirrors.
	Name string `json:"name"`

	// Slug is the URL-safe identifier.
	Slug string `json:"slug"`

	// WasRecentlyCreated is true only on the call that
	// created the category.
	WasRecentlyCreated bool `json:"-"`
}

// Component is a platform-side translation resource.
type Component struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	FileMask string `json:"filemask"`
	Template string `json:"template"`

	// TaskURL points at an in-flight background task
	// (clone, pull) when one exists.
	TaskURL string `json:"task_url"`

	// LinkedComponent names the component whose
	// repository checkout this one shares. Empty for
	// the main component. Derived from Repo on read.
	LinkedComponent string `json:"-"`
}

// ComponentRequest describes a component to create.
type ComponentRequest struct {
	// Name must be unique within the category.
	Name string

	// FileMask is the per-language file glob.
	FileMask string

	// Template is the main-language source file path.
	Template string

	CategoryID   int
	CategorySlug string

	// Repo is the upstream VCS URL. Ignored when
	// LinkTo is set.
	Repo string

	// Branch is the upstream branch. Ignored when
	// LinkTo is set.
	Branch string

	// LinkTo names an existing component whose
	// checkout this component shares.
	LinkTo string

	// LinkToCategorySlug is the category holding the
	// LinkTo component. Defaults to CategorySlug.
	LinkToCategorySlug string

	// RepoForUpdates is the push URL for the owning
	// component.
	RepoForUpdates string

	// ApplyAddons installs the JSON formatting addon
	// after creation.
	ApplyAddons bool

	PullRequestNumber int
	PullRequestAuthor string

	// UpdateIfExist converges an already-existing
	// component instead of failing on a duplicate
	// name.
	UpdateIfExist bool
}

// RepositoryStatus is the platform's view of a
// component's repository working copy.
type RepositoryStatus struct {
	NeedsCommit  bool   `json:"needs_commit"`
	NeedsPush    bool   `json:"needs_push"`
	NeedsMerge   bool   `json:"needs_merge"`
	MergeFailure string `json:"merge_failure"`
}

// TranslationStats is the translated-string count for
// one language of a component.
type TranslationStats struct {
	LanguageCode string `json:"code"`
	Translated   int    `json:"translated"`
}

// Client is the contract the orchestrator requires from
// the translation platform.
type Client interface {
	// CreateCategoryForBranch is idempotent: a repeat
	// call for an existing branch returns the existing
	// category with WasRecentlyCreated false.
	CreateCategoryForBranch(
		ctx context.Context,
		branch string,
	) (*Category, error)

	// FindCategoryForBranch returns nil (and no error)
	// when no category mirrors the branch.
	FindCategoryForBranch(
		ctx context.Context,
		branch string,
	) (*Category, error)

	// RemoveCategory deletes a category and cascades
	// to its components.
	RemoveCategory(ctx context.Context, id int) error

	CreateComponent(
		ctx context.Context,
		req ComponentRequest,
	) (*Component, error)

	RemoveComponent(
		ctx context.Context,
		name string,
		categorySlug string,
	) error

	ComponentsInCategory(
		ctx context.Context,
		categoryID int,
	) ([]Component, error)

	// MainComponentInCategory returns the single
	// component with no link, or ErrNoMainComponent.
	MainComponentInCategory(
		ctx context.Context,
		categoryID int,
	) (*Component, error)

	// WaitComponentsTasks blocks until every named
	// component's background task reaches a terminal
	// state (success or failure). It never returns
	// early on a partial subset.
	WaitComponentsTasks(
		ctx context.Context,
		names []string,
		categorySlug string,
	) error

	PullComponentRemoteChanges(
		ctx context.Context,
		name string,
		categorySlug string,
	) error

	RepositoryStatus(
		ctx context.Context,
		name string,
		categorySlug string,
	) (*RepositoryStatus, error)

	TranslationStats(
		ctx context.Context,
		name string,
		categorySlug string,
	) ([]TranslationStats, error)
}

// internalScheme prefixes repository URLs that point at
// another component's checkout instead of an upstream
// VCS.
const internalScheme = "weblate://"

// linkedComponentSlug extracts the target component slug
// from an internal repository URL. Returns empty string
// for upstream URLs.
func linkedComponentSlug(repo string) string {
	if !strings.HasPrefix(repo, internalScheme) {
		return ""
	}

	return path.Base(
		strings.TrimPrefix(repo, internalScheme),
	)
}

// Slugify derives the URL-safe identifier the platform
// assigns to a name: lower-cased, with runs of
// unsupported characters collapsed to a dash. Underscores
// survive, so PR-suffixed names stay recognizable.
func Slugify(name string) string {
	var sb strings.Builder

	lastDash := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '_', r == '-':
			sb.WriteRune(r)

			lastDash = false
		default:
			if !lastDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}

			lastDash = true
		}
	}

	return strings.TrimSuffix(sb.String(), "-")
}
