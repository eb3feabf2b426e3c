package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Marginy605/weblate-sync/sync/discover"
	"github.com/Marginy605/weblate-sync/sync/weblate"
)

// Engine applies create/link/remove actions against one
// category.
type Engine struct {
	// Client is the platform boundary.
	Client weblate.Client

	// Repo is the upstream repository URL bound to the
	// owning component.
	Repo string

	// Branch is the upstream branch to track.
	Branch string

	// RepoForUpdates is the optional push URL for the
	// owning component.
	RepoForUpdates string

	// ApplyAddons installs the JSON formatting addon
	// on created components.
	ApplyAddons bool

	// Parallelism bounds concurrent component
	// creation. Values below one fall back to one.
	Parallelism int
}

// Options tunes one reconciliation pass.
type Options struct {
	// PullRequestNumber suffixes component names in PR
	// mode. Zero means trunk mode (no suffix).
	PullRequestNumber int

	// PullRequestAuthor is recorded on created
	// components in PR mode.
	PullRequestAuthor string

	// UpdateIfExist converges existing components
	// instead of failing on duplicate names.
	UpdateIfExist bool
}

// SuffixName appends the pull-request number to a
// component name so concurrently open PR mirrors never
// collide. Trunk mode (pr <= 0) leaves the name as is.
func SuffixName(name string, pr int) string {
	if pr <= 0 {
		return name
	}

	return fmt.Sprintf("%s__%d", name, pr)
}

// Apply converges the category's component set to the
// discovered groups. The owner group is bound directly
// to the upstream repository unless the category already
// holds a main component, in which case every group
// links to that main component. Linked creations fan out
// concurrently once the link target is known.
func (e *Engine) Apply(
	ctx context.Context,
	cat *weblate.Category,
	groups []discover.Group,
	opts Options,
) error {
	const errCtx = "reconciling components"

	if len(groups) == 0 {
		slog.Info(
			"no resource groups to reconcile",
			"category", cat.Slug,
		)

		return nil
	}

	owner, rest := splitOwner(groups)

	linkTarget, err := e.ensureOwner(
		ctx, cat, owner, opts,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	// The owner group may itself already be the main
	// component; do not recreate it as a link.
	linked := make([]discover.Group, 0, len(rest)+1)

	for _, g := range rest {
		name := SuffixName(
			g.Name, opts.PullRequestNumber,
		)
		if name != linkTarget {
			linked = append(linked, g)
		}
	}

	if SuffixName(
		owner.Name, opts.PullRequestNumber,
	) != linkTarget {
		linked = append(linked, owner)
	}

	if err := e.createLinked(
		ctx, cat, linked, linkTarget, opts,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// ensureOwner resolves the component every linked
// component must point at. When the category already has
// a main component it is reused; otherwise the owner
// group is created bound to the upstream repository.
// The returned name is the link target.
func (e *Engine) ensureOwner(
	ctx context.Context,
	cat *weblate.Category,
	owner discover.Group,
	opts Options,
) (string, error) {
	const errCtx = "ensuring owning component"

	main, err := e.Client.MainComponentInCategory(
		ctx, cat.ID,
	)

	switch {
	case err == nil:
		slog.Info(
			"reusing existing main component",
			"component", main.Name,
			"category", cat.Slug,
		)

		return main.Name, nil

	case errors.Is(err, weblate.ErrNoMainComponent):
		// Fall through to create the owner.

	default:
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	name := SuffixName(
		owner.Name, opts.PullRequestNumber,
	)

	created, err := e.Client.CreateComponent(
		ctx,
		weblate.ComponentRequest{
			Name:              name,
			FileMask:          owner.FileMask,
			Template:          owner.Source,
			CategoryID:        cat.ID,
			CategorySlug:      cat.Slug,
			Repo:              e.Repo,
			Branch:            e.Branch,
			RepoForUpdates:    e.RepoForUpdates,
			ApplyAddons:       e.ApplyAddons,
			PullRequestNumber: opts.PullRequestNumber,
			PullRequestAuthor: opts.PullRequestAuthor,
			UpdateIfExist:     opts.UpdateIfExist,
		},
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	slog.Info(
		"created owning component",
		"component", created.Name,
		"category", cat.Slug,
	)

	return created.Name, nil
}

// createLinked creates the given groups as links to
// linkTarget on a bounded worker pool, joining every
// worker before returning. The first error observed is
// propagated.
func (e *Engine) createLinked(
	ctx context.Context,
	cat *weblate.Category,
	groups []discover.Group,
	linkTarget string,
	opts Options,
) error {
	const errCtx = "creating linked components"

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	sem := make(chan struct{}, parallelism)

	for _, group := range groups {
		if ctx.Err() != nil {
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()

			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(g discover.Group) {
			defer wg.Done()
			defer func() { <-sem }()

			name := SuffixName(
				g.Name, opts.PullRequestNumber,
			)

			_, err := e.Client.CreateComponent(
				ctx,
				weblate.ComponentRequest{
					Name:         name,
					FileMask:     g.FileMask,
					Template:     g.Source,
					CategoryID:   cat.ID,
					CategorySlug: cat.Slug,
					LinkTo:       linkTarget,
					ApplyAddons:  e.ApplyAddons,
					PullRequestNumber: opts.
						PullRequestNumber,
					PullRequestAuthor: opts.
						PullRequestAuthor,
					UpdateIfExist: opts.UpdateIfExist,
				},
			)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf(
					"component %s: %w", name, err,
				))
				mu.Unlock()

				return
			}

			slog.Info(
				"created linked component",
				"component", name,
				"target", linkTarget,
			)
		}(group)
	}

	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf(
			"%s: %d errors, first: %w",
			errCtx, len(errs), errs[0],
		)
	}

	return nil
}

// CloneCategory recreates every component of src inside
// dst as a PR-suffixed link to src's main component,
// carrying the origin's file mask and template. Returns
// the created component names for the task barrier.
func (e *Engine) CloneCategory(
	ctx context.Context,
	src *weblate.Category,
	dst *weblate.Category,
	pr int,
	author string,
) ([]string, error) {
	const errCtx = "cloning category components"

	main, err := e.Client.MainComponentInCategory(
		ctx, src.ID,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	comps, err := e.Client.ComponentsInCategory(
		ctx, src.ID,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	names := make([]string, 0, len(comps))
	sem := make(chan struct{}, parallelism)

	for _, comp := range comps {
		name := SuffixName(comp.Name, pr)
		names = append(names, name)

		wg.Add(1)
		sem <- struct{}{}

		go func(origin weblate.Component) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := e.Client.CreateComponent(
				ctx,
				weblate.ComponentRequest{
					Name:     SuffixName(origin.Name, pr),
					FileMask: origin.FileMask,
					Template: origin.Template,
					CategoryID:         dst.ID,
					CategorySlug:       dst.Slug,
					LinkTo:             main.Name,
					LinkToCategorySlug: src.Slug,
					PullRequestNumber:  pr,
					PullRequestAuthor:  author,
				},
			)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf(
					"component %s: %w",
					origin.Name, err,
				))
				mu.Unlock()
			}
		}(comp)
	}

	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf(
			"%s: %d errors, first: %w",
			errCtx, len(errs), errs[0],
		)
	}

	slog.Info(
		"cloned category components",
		"from", src.Slug,
		"to", dst.Slug,
		"count", len(names),
	)

	return names, nil
}

// RemoveMissing deletes every component of the category
// whose name is not backed by a discovered group. The
// caller must have passed the task barrier first so a
// deletion cannot race an in-flight clone or pull. The
// main component, if stale, is removed after its links.
func (e *Engine) RemoveMissing(
	ctx context.Context,
	cat *weblate.Category,
	groups []discover.Group,
	pr int,
) error {
	const errCtx = "removing missing components"

	comps, err := e.Client.ComponentsInCategory(
		ctx, cat.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	want := make(
		map[string]struct{}, len(groups),
	)
	for _, g := range groups {
		want[SuffixName(g.Name, pr)] = struct{}{}
	}

	var (
		stale      []weblate.Component
		staleMains []weblate.Component
	)

	for _, comp := range comps {
		if _, ok := want[comp.Name]; ok {
			continue
		}

		if comp.LinkedComponent == "" {
			// The main component goes last so its
			// links are never left dangling.
			staleMains = append(staleMains, comp)

			continue
		}

		stale = append(stale, comp)
	}

	stale = append(stale, staleMains...)

	for _, comp := range stale {
		if err := e.Client.RemoveComponent(
			ctx, comp.Name, cat.Slug,
		); err != nil {
			return fmt.Errorf(
				"%s: %q: %w",
				errCtx, comp.Name, err,
			)
		}

		slog.Info(
			"removed stale component",
			"component", comp.Name,
			"category", cat.Slug,
		)
	}

	return nil
}

// splitOwner partitions groups into the designated owner
// and the rest. When no group carries the owner flag the
// first one is used.
func splitOwner(
	groups []discover.Group,
) (discover.Group, []discover.Group) {
	for i, g := range groups {
		if !g.Owner {
			continue
		}

		rest := make(
			[]discover.Group, 0, len(groups)-1,
		)
		rest = append(rest, groups[:i]...)
		rest = append(rest, groups[i+1:]...)

		return g, rest
	}

	return groups[0], groups[1:]
}
