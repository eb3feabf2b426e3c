package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Marginy605/weblate-sync/sync/discover"
	"github.com/Marginy605/weblate-sync/sync/reconcile"
	"github.com/Marginy605/weblate-sync/sync/scm"
	"github.com/Marginy605/weblate-sync/sync/status"
	"github.com/Marginy605/weblate-sync/sync/weblate"
)

// Sentinel errors reported by the mode handlers. In PR
// modes each of them is mirrored as a pull request
// comment before being returned.
var (
	// ErrTrunkNotFound means the trunk category the
	// pull request clone would derive from does not
	// exist yet.
	ErrTrunkNotFound = errors.New(
		"trunk category not found",
	)

	// ErrMergeConflict means the platform repository
	// could not merge remote changes automatically.
	ErrMergeConflict = errors.New(
		"platform repository merge conflict",
	)

	// ErrUnpushedChanges means the platform holds
	// commits that never reached the upstream
	// repository.
	ErrUnpushedChanges = errors.New(
		"platform repository has unpushed commits",
	)

	// ErrUntranslated means at least one component of
	// the pull request category has no translated
	// strings in any language.
	ErrUntranslated = errors.New(
		"pull request has untranslated components",
	)
)

// Config collects everything a Syncer needs.
type Config struct {
	// Client is the translation platform boundary.
	Client weblate.Client

	// Commenter posts PR comments. May be nil, in
	// which case failures are only logged.
	Commenter scm.CommentProvider

	// Repo is the upstream repository URL.
	Repo string

	// Branch is the branch being mirrored.
	Branch string

	// RepoForUpdates is the optional push URL for
	// translations flowing back.
	RepoForUpdates string

	// KeysetsRoot locates the resource groups, either
	// as a directory or a glob pattern.
	KeysetsRoot string

	// MainLanguage is the source language code.
	MainLanguage string

	// Anchor tunes glob-mode group naming.
	Anchor string

	// ApplyAddons installs the JSON formatting addon
	// on created components.
	ApplyAddons bool

	// PullRequestNumber identifies the pull request in
	// PR modes.
	PullRequestNumber int

	// PullRequestAuthor is recorded on created
	// components in PR modes.
	PullRequestAuthor string

	// Parallelism bounds concurrent component
	// creation.
	Parallelism int
}

// Syncer drives one branch's platform state.
type Syncer struct {
	cfg    Config
	engine *reconcile.Engine
}

// New validates cfg and returns a ready Syncer.
func New(cfg Config) (*Syncer, error) {
	const errCtx = "creating syncer"

	if cfg.Client == nil {
		return nil, fmt.Errorf(
			"%s: client must be set", errCtx,
		)
	}

	if cfg.Branch == "" {
		return nil, fmt.Errorf(
			"%s: branch must be set", errCtx,
		)
	}

	return &Syncer{
		cfg: cfg,
		engine: &reconcile.Engine{
			Client:         cfg.Client,
			Repo:           cfg.Repo,
			Branch:         cfg.Branch,
			RepoForUpdates: cfg.RepoForUpdates,
			ApplyAddons:    cfg.ApplyAddons,
			Parallelism:    cfg.Parallelism,
		},
	}, nil
}

// SyncBranch converges the trunk category with the
// resource groups present on the branch. A failed merge
// or unpushed platform commits fail the run; translators
// mid-edit only produce a warning.
func (s *Syncer) SyncBranch(
	ctx context.Context,
) error {
	const errCtx = "syncing branch"

	cat, err := s.cfg.Client.CreateCategoryForBranch(
		ctx, s.cfg.Branch,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if cat.WasRecentlyCreated {
		slog.Info(
			"created category for branch",
			"branch", s.cfg.Branch,
			"category", cat.Slug,
		)
	} else if err := s.pullMain(ctx, cat); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	groups, err := s.discoverGroups()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.engine.Apply(
		ctx, cat, groups,
		reconcile.Options{
			// A fresh category cannot hold leftovers
			// to converge; skipping the update path
			// surfaces accidental duplicates.
			UpdateIfExist: !cat.WasRecentlyCreated,
		},
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.waitCategory(ctx, cat); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.engine.RemoveMissing(
		ctx, cat, groups, 0,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(groups) == 0 {
		return nil
	}

	if err := s.checkMainHealth(
		ctx, cat, nil,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"branch synchronized",
		"branch", s.cfg.Branch,
		"category", cat.Slug,
		"groups", len(groups),
	)

	return nil
}

// ValidatePullRequest mirrors the pull request into a
// disposable category and gates on repository health and
// translation progress. Every failure that reaches the
// author is also posted as a PR comment.
func (s *Syncer) ValidatePullRequest(
	ctx context.Context,
) error {
	const errCtx = "validating pull request"

	pr := s.cfg.PullRequestNumber

	prBranch := reconcile.SuffixName(
		s.cfg.Branch, pr,
	)

	cat, err := s.cfg.Client.CreateCategoryForBranch(
		ctx, prBranch,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if cat.WasRecentlyCreated {
		if err := s.bootstrapFromTrunk(
			ctx, cat,
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	} else if err := s.resumeExisting(
		ctx, cat,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	groups, err := s.discoverGroups()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.engine.Apply(
		ctx, cat, groups,
		reconcile.Options{
			PullRequestNumber: pr,
			PullRequestAuthor: s.cfg.PullRequestAuthor,
			// Cloned components carry the trunk
			// binding; the update path rebinds them
			// to the pull request branch.
			UpdateIfExist: true,
		},
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !cat.WasRecentlyCreated && len(groups) > 0 {
		owner := reconcile.SuffixName(
			ownerGroup(groups).Name, pr,
		)

		if err := s.cfg.Client.
			PullComponentRemoteChanges(
				ctx, owner, cat.Slug,
			); err != nil {
			return fmt.Errorf(
				"%s: pull %q: %w",
				errCtx, owner, err,
			)
		}
	}

	if err := s.waitCategory(ctx, cat); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.engine.RemoveMissing(
		ctx, cat, groups, pr,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(groups) == 0 {
		return nil
	}

	if err := s.checkMainHealth(
		ctx, cat, s.commentFatal,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.checkTranslationProgress(
		ctx, cat,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"pull request validated",
		"branch", s.cfg.Branch,
		"pr", pr,
		"category", cat.Slug,
	)

	return nil
}

// RemoveBranch tears down the pull request category.
// A missing category is success: the flow is triggered
// on every PR close and must stay idempotent.
func (s *Syncer) RemoveBranch(
	ctx context.Context,
) error {
	const errCtx = "removing pull request category"

	prBranch := reconcile.SuffixName(
		s.cfg.Branch, s.cfg.PullRequestNumber,
	)

	cat, err := s.cfg.Client.FindCategoryForBranch(
		ctx, prBranch,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if cat == nil {
		slog.Info(
			"category already absent",
			"branch", prBranch,
		)

		return nil
	}

	if err := s.cfg.Client.RemoveCategory(
		ctx, cat.ID,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"removed category",
		"branch", prBranch,
		"category", cat.Slug,
	)

	return nil
}

// bootstrapFromTrunk fills a freshly created PR category
// by cloning the trunk category's components as links,
// then waits for the platform-side clone tasks.
func (s *Syncer) bootstrapFromTrunk(
	ctx context.Context,
	cat *weblate.Category,
) error {
	const errCtx = "bootstrapping from trunk"

	trunk, err := s.cfg.Client.FindCategoryForBranch(
		ctx, s.cfg.Branch,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if trunk == nil {
		s.commentFatal(ctx, trunkMissingComment(
			s.cfg.Branch,
		))

		return fmt.Errorf(
			"%s: branch %q: %w",
			errCtx, s.cfg.Branch, ErrTrunkNotFound,
		)
	}

	names, err := s.engine.CloneCategory(
		ctx, trunk, cat,
		s.cfg.PullRequestNumber,
		s.cfg.PullRequestAuthor,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.cfg.Client.WaitComponentsTasks(
		ctx, names, cat.Slug,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// resumeExisting refreshes an already-mirrored pull
// request: pull remote changes into the main component
// and bail out on a merge conflict before touching
// anything else.
func (s *Syncer) resumeExisting(
	ctx context.Context,
	cat *weblate.Category,
) error {
	const errCtx = "resuming existing category"

	main, err := s.cfg.Client.MainComponentInCategory(
		ctx, cat.ID,
	)

	switch {
	case errors.Is(err, weblate.ErrNoMainComponent):
		// An earlier run died between category and
		// component creation; the reconcile pass will
		// rebuild the owner.
		slog.Warn(
			"category has no main component yet",
			"category", cat.Slug,
		)

		return nil

	case err != nil:
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.cfg.Client.
		PullComponentRemoteChanges(
			ctx, main.Name, cat.Slug,
		); err != nil {
		return fmt.Errorf(
			"%s: pull %q: %w",
			errCtx, main.Name, err,
		)
	}

	health, err := status.Classify(
		ctx, s.cfg.Client, main.Name, cat.Slug,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if health.MergeFailure != "" {
		s.commentFatal(ctx, mergeConflictComment(
			s.cfg.Branch, health.MergeFailure,
		))

		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, health.MergeFailure,
			ErrMergeConflict,
		)
	}

	return nil
}

// checkMainHealth classifies the category's main
// component. comment may be nil; when set, fatal
// conditions are mirrored to the pull request before
// returning. A merge failure short-circuits the other
// checks.
func (s *Syncer) checkMainHealth(
	ctx context.Context,
	cat *weblate.Category,
	comment func(context.Context, string),
) error {
	const errCtx = "checking repository health"

	main, err := s.cfg.Client.MainComponentInCategory(
		ctx, cat.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	health, err := status.Classify(
		ctx, s.cfg.Client, main.Name, cat.Slug,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if health.MergeFailure != "" {
		if comment != nil {
			comment(ctx, mergeConflictComment(
				s.cfg.Branch, health.MergeFailure,
			))
		}

		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, health.MergeFailure,
			ErrMergeConflict,
		)
	}

	if health.NeedsCommit != "" {
		slog.Warn(
			"platform has uncommitted changes",
			"component", main.Name,
			"detail", health.NeedsCommit,
		)
	}

	if health.NeedsPush != "" {
		if comment != nil {
			comment(ctx, unpushedComment(
				s.cfg.Branch, health.NeedsPush,
			))
		}

		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, health.NeedsPush,
			ErrUnpushedChanges,
		)
	}

	return nil
}

// checkTranslationProgress fails when any component of
// the category has zero translated strings across every
// language. The failing component list is posted to the
// pull request.
func (s *Syncer) checkTranslationProgress(
	ctx context.Context,
	cat *weblate.Category,
) error {
	const errCtx = "checking translation progress"

	comps, err := s.cfg.Client.ComponentsInCategory(
		ctx, cat.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	var untranslated []string

	for _, comp := range comps {
		stats, err := s.cfg.Client.TranslationStats(
			ctx, comp.Name, cat.Slug,
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %q: %w",
				errCtx, comp.Name, err,
			)
		}

		translated := 0
		for _, st := range stats {
			translated += st.Translated
		}

		if translated == 0 {
			untranslated = append(
				untranslated, comp.Name,
			)
		}
	}

	if len(untranslated) == 0 {
		return nil
	}

	s.commentFatal(ctx, untranslatedComment(
		s.cfg.Branch, untranslated,
	))

	return fmt.Errorf(
		"%s: %d components: %w",
		errCtx, len(untranslated), ErrUntranslated,
	)
}

// pullMain refreshes the main component from upstream.
// A category without a main component is tolerated; the
// reconcile pass creates it.
func (s *Syncer) pullMain(
	ctx context.Context,
	cat *weblate.Category,
) error {
	const errCtx = "pulling main component"

	main, err := s.cfg.Client.MainComponentInCategory(
		ctx, cat.ID,
	)

	switch {
	case errors.Is(err, weblate.ErrNoMainComponent):
		slog.Warn(
			"no main component to pull",
			"category", cat.Slug,
		)

		return nil

	case err != nil:
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := s.cfg.Client.
		PullComponentRemoteChanges(
			ctx, main.Name, cat.Slug,
		); err != nil {
		return fmt.Errorf(
			"%s: %q: %w", errCtx, main.Name, err,
		)
	}

	return nil
}

// waitCategory blocks until every component of the
// category has no running background task.
func (s *Syncer) waitCategory(
	ctx context.Context,
	cat *weblate.Category,
) error {
	const errCtx = "waiting for category tasks"

	comps, err := s.cfg.Client.ComponentsInCategory(
		ctx, cat.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	names := make([]string, 0, len(comps))
	for _, comp := range comps {
		names = append(names, comp.Name)
	}

	if err := s.cfg.Client.WaitComponentsTasks(
		ctx, names, cat.Slug,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// discoverGroups runs resource discovery with the
// configured root.
func (s *Syncer) discoverGroups() (
	[]discover.Group, error,
) {
	return discover.Discover(discover.Config{
		Root:         s.cfg.KeysetsRoot,
		MainLanguage: s.cfg.MainLanguage,
		Anchor:       s.cfg.Anchor,
	})
}

// commentFatal mirrors a fatal condition to the pull
// request. A failed post is logged but never masks the
// original failure.
func (s *Syncer) commentFatal(
	ctx context.Context,
	body string,
) {
	if s.cfg.Commenter == nil {
		slog.Warn(
			"no comment provider configured",
			"body", body,
		)

		return
	}

	if err := s.cfg.Commenter.Comment(
		ctx, s.cfg.PullRequestNumber, body,
	); err != nil {
		slog.Error(
			"posting pull request comment",
			"pr", s.cfg.PullRequestNumber,
			"error", err,
		)
	}
}

// ownerGroup returns the group designated as VCS owner,
// falling back to the first one.
func ownerGroup(
	groups []discover.Group,
) discover.Group {
	for _, g := range groups {
		if g.Owner {
			return g
		}
	}

	return groups[0]
}
