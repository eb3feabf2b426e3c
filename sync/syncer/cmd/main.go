// Command weblate-sync keeps a translation platform in
// step with a repository branch. It creates or refreshes
// the branch category, validates open pull requests
// against a disposable category clone, and removes that
// clone when the pull request closes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Marginy605/weblate-sync/sync/config"
	"github.com/Marginy605/weblate-sync/sync/scm"
	"github.com/Marginy605/weblate-sync/sync/scm/github"
	"github.com/Marginy605/weblate-sync/sync/scm/gitlab"
	"github.com/Marginy605/weblate-sync/sync/syncer"
	"github.com/Marginy605/weblate-sync/sync/weblate"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running weblate-sync"

	configPath := flag.String(
		"config", "",
		"Path to a YAML configuration file; flags "+
			"override its values",
	)

	// Mode and repository flags.
	mode := flag.String(
		"mode", "",
		"Operation: sync-branch, validate-pr, or "+
			"remove-branch",
	)
	repo := flag.String(
		"repo", "",
		"Upstream repository URL",
	)
	repoForUpdates := flag.String(
		"repo_for_updates", "",
		"Push URL for translations flowing back",
	)
	branch := flag.String(
		"branch", "",
		"Branch being mirrored",
	)

	// Discovery flags.
	keysetsRoot := flag.String(
		"keysets_root", "",
		"Keysets directory or glob pattern",
	)
	mainLanguage := flag.String(
		"main_language", "",
		"Source language code",
	)
	anchor := flag.String(
		"anchor", "",
		"Path segment anchoring glob-mode group names",
	)
	applyAddons := flag.Bool(
		"apply_addons", false,
		"Install the JSON formatting addon",
	)
	parallelism := flag.Int(
		"parallelism", 0,
		"Concurrent component creations",
	)

	// Platform flags.
	weblateURL := flag.String(
		"weblate_url", "",
		"Translation platform base URL",
	)
	weblateToken := flag.String(
		"weblate_token", "",
		"Translation platform API token",
	)
	weblateProject := flag.String(
		"weblate_project", "",
		"Translation platform project slug",
	)
	weblateFileFormat := flag.String(
		"weblate_file_format", "",
		"Translation file format slug",
	)
	waitTimeout := flag.Duration(
		"weblate_wait_timeout", 0,
		"Upper bound for background task waits",
	)
	pollInterval := flag.Duration(
		"weblate_poll_interval", 0,
		"Background task polling cadence",
	)

	// Pull request flags.
	prNumber := flag.Int(
		"pr_number", 0,
		"Pull request number",
	)
	prAuthor := flag.String(
		"pr_author", "",
		"Pull request author login",
	)

	// Comment provider selection.
	scmServer := flag.String(
		"scm_server", "",
		"Comment platform: github, gitlab, or empty "+
			"to disable comments",
	)

	// GitHub-specific flags.
	ghRepoOwner := flag.String(
		"github_repo_owner", "",
		"GitHub repository owner",
	)
	ghRepo := flag.String(
		"github_repo", "",
		"GitHub repository name",
	)
	ghToken := flag.String(
		"github_access_token", "",
		"GitHub personal access token",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)

	// GitLab-specific flags.
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glRepo := flag.String(
		"gitlab_repo", "",
		"GitLab project path (org/project)",
	)
	glToken := flag.String(
		"gitlab_access_token", "",
		"GitLab personal access token",
	)

	flag.Parse()

	cfg := &config.Config{}

	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		cfg = loaded
	}

	overrideString(&cfg.Mode, *mode)
	overrideString(&cfg.Repo, *repo)
	overrideString(
		&cfg.RepoForUpdates, *repoForUpdates,
	)
	overrideString(&cfg.Branch, *branch)
	overrideString(&cfg.KeysetsRoot, *keysetsRoot)
	overrideString(&cfg.MainLanguage, *mainLanguage)
	overrideString(&cfg.Anchor, *anchor)

	if *applyAddons {
		cfg.ApplyAddons = true
	}

	overrideInt(&cfg.Parallelism, *parallelism)
	overrideString(&cfg.Weblate.URL, *weblateURL)
	overrideString(&cfg.Weblate.Token, *weblateToken)
	overrideString(
		&cfg.Weblate.Project, *weblateProject,
	)
	overrideString(
		&cfg.Weblate.FileFormat, *weblateFileFormat,
	)
	overrideDuration(
		&cfg.Weblate.WaitTimeout, *waitTimeout,
	)
	overrideDuration(
		&cfg.Weblate.PollInterval, *pollInterval,
	)
	overrideInt(&cfg.PullRequest.Number, *prNumber)
	overrideString(&cfg.PullRequest.Author, *prAuthor)
	overrideString(&cfg.SCM.Server, *scmServer)
	overrideString(
		&cfg.SCM.GitHub.RepoOwner, *ghRepoOwner,
	)
	overrideString(&cfg.SCM.GitHub.Repo, *ghRepo)
	overrideString(
		&cfg.SCM.GitHub.AccessToken, *ghToken,
	)
	overrideString(
		&cfg.SCM.GitHub.EnterpriseHost, *ghEnterprise,
	)
	overrideString(&cfg.SCM.GitLab.Host, *glHost)
	overrideString(&cfg.SCM.GitLab.Repo, *glRepo)
	overrideString(
		&cfg.SCM.GitLab.AccessToken, *glToken,
	)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	client, err := weblate.NewREST(weblate.Config{
		URL:          cfg.Weblate.URL,
		Token:        cfg.Weblate.Token,
		Project:      cfg.Weblate.Project,
		FileFormat:   cfg.Weblate.FileFormat,
		WaitTimeout:  cfg.Weblate.WaitTimeout,
		PollInterval: cfg.Weblate.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	commenter, err := newCommentProvider(cfg.SCM)
	if err != nil {
		return fmt.Errorf(
			"%s: create provider: %w", errCtx, err,
		)
	}

	s, err := syncer.New(syncer.Config{
		Client:            client,
		Commenter:         commenter,
		Repo:              cfg.Repo,
		Branch:            cfg.Branch,
		RepoForUpdates:    cfg.RepoForUpdates,
		KeysetsRoot:       cfg.KeysetsRoot,
		MainLanguage:      cfg.MainLanguage,
		Anchor:            cfg.Anchor,
		ApplyAddons:       cfg.ApplyAddons,
		PullRequestNumber: cfg.PullRequest.Number,
		PullRequestAuthor: cfg.PullRequest.Author,
		Parallelism:       cfg.Parallelism,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ctx := context.Background()

	switch cfg.Mode {
	case config.ModeSyncBranch:
		err = s.SyncBranch(ctx)
	case config.ModeValidatePR:
		err = s.ValidatePullRequest(ctx)
	case config.ModeRemoveBranch:
		err = s.RemoveBranch(ctx)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// newCommentProvider creates the PR comment boundary for
// the selected platform. Pattern: Factory -- selects
// platform implementation at runtime. An empty server
// disables comments.
func newCommentProvider(
	cfg config.SCM,
) (scm.CommentProvider, error) {
	const errCtx = "creating comment provider"

	switch cfg.Server {
	case "":
		return nil, nil

	case "github":
		p, err := github.NewProvider(github.Config{
			RepoOwner:      cfg.GitHub.RepoOwner,
			Repo:           cfg.GitHub.Repo,
			AccessToken:    cfg.GitHub.AccessToken,
			EnterpriseHost: cfg.GitHub.EnterpriseHost,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        cfg.GitLab.Host,
			Repo:        cfg.GitLab.Repo,
			AccessToken: cfg.GitLab.AccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q",
			errCtx, cfg.Server,
		)
	}
}

// overrideString applies a non-empty flag value over the
// loaded configuration.
func overrideString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// overrideInt applies a positive flag value.
func overrideInt(dst *int, val int) {
	if val > 0 {
		*dst = val
	}
}

// overrideDuration applies a positive flag value.
func overrideDuration(
	dst *time.Duration,
	val time.Duration,
) {
	if val > 0 {
		*dst = val
	}
}
