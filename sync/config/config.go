package config

import (
	"fmt"
	"time"

	"github.com/a8m/envsubst"
	"github.com/goccy/go-yaml"
)

// Operating modes.
const (
	ModeSyncBranch   = "sync-branch"
	ModeValidatePR   = "validate-pr"
	ModeRemoveBranch = "remove-branch"
)

// Config is the full process configuration.
type Config struct {
	// Mode selects the operational flow: sync-branch,
	// validate-pr, or remove-branch.
	Mode string `yaml:"mode"`

	// Repo is the upstream repository URL.
	Repo string `yaml:"repo"`

	// RepoForUpdates is an optional push URL used when
	// the platform pushes translations back.
	RepoForUpdates string `yaml:"repo_for_updates"`

	// Branch is the source branch being mirrored.
	Branch string `yaml:"branch"`

	// KeysetsRoot is a concrete directory or a glob
	// pattern selecting keyset directories.
	KeysetsRoot string `yaml:"keysets_root"`

	// MainLanguage is the source language code.
	MainLanguage string `yaml:"main_language"`

	// Anchor is the path segment used to derive group
	// name prefixes in glob mode.
	Anchor string `yaml:"anchor"`

	// ApplyAddons installs the JSON formatting addon
	// on created components.
	ApplyAddons bool `yaml:"apply_addons"`

	// Parallelism bounds concurrent component
	// creation.
	Parallelism int `yaml:"parallelism"`

	Weblate     Weblate     `yaml:"weblate"`
	PullRequest PullRequest `yaml:"pull_request"`
	SCM         SCM         `yaml:"scm"`
}

// Weblate holds the translation platform settings.
type Weblate struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token"`
	Project    string `yaml:"project"`
	FileFormat string `yaml:"file_format"`

	// WaitTimeout bounds the task barrier.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// PollInterval is the task polling cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PullRequest identifies the pull request in PR modes.
type PullRequest struct {
	Number int    `yaml:"number"`
	Author string `yaml:"author"`
}

// SCM selects and configures the source-hosting
// platform used for PR comments.
type SCM struct {
	// Server is "github", "gitlab", or empty to
	// disable comments.
	Server string `yaml:"server"`

	GitHub GitHub `yaml:"github"`
	GitLab GitLab `yaml:"gitlab"`
}

// GitHub holds GitHub comment provider settings.
type GitHub struct {
	RepoOwner      string `yaml:"repo_owner"`
	Repo           string `yaml:"repo"`
	AccessToken    string `yaml:"access_token"`
	EnterpriseHost string `yaml:"enterprise_host"`
}

// GitLab holds GitLab note provider settings.
type GitLab struct {
	Host        string `yaml:"host"`
	Repo        string `yaml:"repo"`
	AccessToken string `yaml:"access_token"`
}

// Load reads the YAML file at path, substitutes
// ${VAR}-style environment references, and decodes the
// result. The returned config is not yet validated so
// flag overrides can still be applied.
func Load(path string) (*Config, error) {
	const errCtx = "loading configuration"

	raw, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: read %s: %w", errCtx, path, err,
		)
	}

	var cfg Config

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf(
			"%s: parse %s: %w", errCtx, path, err,
		)
	}

	return &cfg, nil
}

// Validate checks the per-mode required fields.
func (c *Config) Validate() error {
	const errCtx = "validating configuration"

	switch c.Mode {
	case ModeSyncBranch,
		ModeValidatePR,
		ModeRemoveBranch:
	default:
		return fmt.Errorf(
			"%s: unknown mode %q", errCtx, c.Mode,
		)
	}

	if c.Branch == "" {
		return fmt.Errorf(
			"%s: branch must be set", errCtx,
		)
	}

	if c.Weblate.URL == "" ||
		c.Weblate.Token == "" ||
		c.Weblate.Project == "" {
		return fmt.Errorf(
			"%s: weblate url, token, and project "+
				"must be set",
			errCtx,
		)
	}

	if c.Mode != ModeRemoveBranch {
		if c.Repo == "" {
			return fmt.Errorf(
				"%s: repo must be set", errCtx,
			)
		}

		if c.KeysetsRoot == "" {
			return fmt.Errorf(
				"%s: keysets root must be set",
				errCtx,
			)
		}

		if c.MainLanguage == "" {
			return fmt.Errorf(
				"%s: main language must be set",
				errCtx,
			)
		}
	}

	if c.Mode != ModeSyncBranch &&
		c.PullRequest.Number <= 0 {
		return fmt.Errorf(
			"%s: pull request number must be set "+
				"in %s mode",
			errCtx, c.Mode,
		)
	}

	return nil
}
