package weblate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

// Config holds the settings needed to talk to a
// translation platform server.
type Config struct {
	// URL is the server base URL
	// (e.g. "https://weblate.example.com").
	URL string

	// Token is the API token used for authentication.
	Token string

	// Project is the project slug all categories and
	// components live under.
	Project string

	// FileFormat is the translation file format slug.
	// Defaults to "json".
	FileFormat string

	// VCS is the version control system for owning
	// components. Defaults to "git".
	VCS string

	// WaitTimeout bounds WaitComponentsTasks.
	// Defaults to 10 minutes.
	WaitTimeout time.Duration

	// PollInterval is the task polling cadence.
	// Defaults to 2 seconds.
	PollInterval time.Duration

	// RetryMax is the per-request HTTP retry count.
	// Defaults to 3.
	RetryMax int
}

// REST implements Client against the platform's HTTP
// API.
type REST struct {
	http         *http.Client
	base         string
	token        string
	project      string
	fileFormat   string
	vcs          string
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// defaults applied by NewREST when Config leaves a field
// zero.
const (
	defaultFileFormat   = "json"
	defaultVCS          = "git"
	defaultWaitTimeout  = 10 * time.Minute
	defaultPollInterval = 2 * time.Second
	defaultRetryMax     = 3
)

// NewREST validates cfg and returns a REST client.
func NewREST(cfg Config) (*REST, error) {
	const errCtx = "creating platform client"

	if cfg.URL == "" {
		return nil, fmt.Errorf(
			"%s: server url must be set", errCtx,
		)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf(
			"%s: token must be set", errCtx,
		)
	}

	if cfg.Project == "" {
		return nil, fmt.Errorf(
			"%s: project must be set", errCtx,
		)
	}

	if cfg.FileFormat == "" {
		cfg.FileFormat = defaultFileFormat
	}

	if cfg.VCS == "" {
		cfg.VCS = defaultVCS
	}

	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.Logger = slog.Default()

	return &REST{
		http:         rc.StandardClient(),
		base:         strings.TrimSuffix(cfg.URL, "/"),
		token:        cfg.Token,
		project:      cfg.Project,
		fileFormat:   cfg.FileFormat,
		vcs:          cfg.VCS,
		waitTimeout:  cfg.WaitTimeout,
		pollInterval: cfg.PollInterval,
	}, nil
}

// apiError is a non-2xx platform response.
type apiError struct {
	Status int
	Body   string
}

// Error formats the status and a body snippet.
func (e *apiError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}

	return fmt.Sprintf(
		"platform returned %d: %s", e.Status, body,
	)
}

// page is one page of a paginated list response.
type page[T any] struct {
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

// CreateCategoryForBranch finds or creates the category
// mirroring branch. WasRecentlyCreated is true only when
// this call created it.
func (c *REST) CreateCategoryForBranch(
	ctx context.Context,
	branch string,
) (*Category, error) {
	const errCtx = "ensuring category for branch"

	existing, err := c.FindCategoryForBranch(
		ctx, branch,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if existing != nil {
		return existing, nil
	}

	payload := map[string]any{
		"name":    branch,
		"slug":    Slugify(branch),
		"project": c.project,
	}

	var cat Category

	if err := c.do(
		ctx,
		http.MethodPost,
		c.categoriesURL(),
		payload,
		&cat,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: create %q: %w", errCtx, branch, err,
		)
	}

	cat.WasRecentlyCreated = true

	slog.Info(
		"created category",
		"branch", branch,
		"slug", cat.Slug,
	)

	return &cat, nil
}

// FindCategoryForBranch returns the category mirroring
// branch, or nil when none exists.
func (c *REST) FindCategoryForBranch(
	ctx context.Context,
	branch string,
) (*Category, error) {
	const errCtx = "finding category for branch"

	cats, err := listPaged[Category](
		ctx, c, c.categoriesURL(),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	for i := range cats {
		if cats[i].Name == branch {
			return &cats[i], nil
		}
	}

	return nil, nil
}

// RemoveCategory deletes a category. The platform
// cascades the deletion to its components.
func (c *REST) RemoveCategory(
	ctx context.Context,
	id int,
) error {
	const errCtx = "removing category"

	if err := c.do(
		ctx,
		http.MethodDelete,
		c.categoryURL(id),
		nil,
		nil,
	); err != nil {
		return fmt.Errorf(
			"%s: id %d: %w", errCtx, id, err,
		)
	}

	return nil
}

// componentPayload is the create/update body for a
// component.
type componentPayload struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	FileMask      string `json:"filemask"`
	Template      string `json:"template,omitempty"`
	FileFormat    string `json:"file_format"`
	VCS           string `json:"vcs"`
	Category      int    `json:"category"`
	Repo          string `json:"repo"`
	Branch        string `json:"branch,omitempty"`
	Push          string `json:"push,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
}

// CreateComponent creates (or, with UpdateIfExist,
// converges) a component. Linked components receive an
// internal repository URL pointing at their link target
// so only the owning component ever clones the upstream
// repository.
func (c *REST) CreateComponent(
	ctx context.Context,
	req ComponentRequest,
) (*Component, error) {
	const errCtx = "creating component"

	payload := componentPayload{
		Name:       req.Name,
		Slug:       Slugify(req.Name),
		FileMask:   req.FileMask,
		Template:   req.Template,
		FileFormat: c.fileFormat,
		VCS:        c.vcs,
		Category:   req.CategoryID,
		Repo:       req.Repo,
		Branch:     req.Branch,
		Push:       req.RepoForUpdates,
	}

	if req.LinkTo != "" {
		linkCat := req.LinkToCategorySlug
		if linkCat == "" {
			linkCat = req.CategorySlug
		}

		payload.Repo = internalScheme + c.project +
			"/" + linkCat +
			"/" + Slugify(req.LinkTo)
		payload.Branch = ""
		payload.Push = ""
	}

	if req.PullRequestNumber > 0 {
		payload.CommitMessage = fmt.Sprintf(
			"Translations update for pull request "+
				"#%d by %s",
			req.PullRequestNumber,
			req.PullRequestAuthor,
		)
	}

	var comp Component

	err := c.do(
		ctx,
		http.MethodPost,
		c.componentsURL(),
		payload,
		&comp,
	)

	var aerr *apiError
	if err != nil &&
		errors.As(err, &aerr) &&
		isDuplicateName(aerr) &&
		req.UpdateIfExist {
		// Duplicate name: converge the existing
		// component instead.
		slog.Info(
			"component exists, updating",
			"name", req.Name,
		)

		err = c.do(
			ctx,
			http.MethodPatch,
			c.componentURL(
				req.CategorySlug, payload.Slug,
			),
			payload,
			&comp,
		)
	}

	if err != nil {
		return nil, fmt.Errorf(
			"%s: %q: %w", errCtx, req.Name, err,
		)
	}

	comp.LinkedComponent = linkedComponentSlug(
		comp.Repo,
	)

	if req.ApplyAddons {
		if err := c.applyJSONAddon(
			ctx, req.CategorySlug, comp.Slug,
		); err != nil {
			return nil, fmt.Errorf(
				"%s: %q: %w", errCtx, req.Name, err,
			)
		}
	}

	return &comp, nil
}

// isDuplicateName reports whether a 400 response
// complains about an already-existing component name
// rather than some other validation problem. Only
// duplicates may be converged with a PATCH; a genuine
// validation error must surface as-is.
func isDuplicateName(aerr *apiError) bool {
	if aerr.Status != http.StatusBadRequest {
		return false
	}

	body := strings.ToLower(aerr.Body)

	return strings.Contains(body, "already exists") ||
		strings.Contains(body, "must be unique")
}

// applyJSONAddon installs the JSON customization addon
// so committed files keep a stable key order and
// indentation. An already-installed addon is not an
// error.
func (c *REST) applyJSONAddon(
	ctx context.Context,
	categorySlug string,
	slug string,
) error {
	const errCtx = "applying json addon"

	payload := map[string]any{
		"name": "weblate.json.customize",
		"configuration": map[string]any{
			"sort_keys": true,
			"style":     "spaces",
			"indent":    2,
		},
	}

	err := c.do(
		ctx,
		http.MethodPost,
		c.componentURL(categorySlug, slug)+"addons/",
		payload,
		nil,
	)

	var aerr *apiError
	if err != nil &&
		errors.As(err, &aerr) &&
		aerr.Status == http.StatusBadRequest {
		slog.Debug(
			"addon already installed",
			"component", slug,
		)

		return nil
	}

	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// RemoveComponent deletes the named component.
func (c *REST) RemoveComponent(
	ctx context.Context,
	name string,
	categorySlug string,
) error {
	const errCtx = "removing component"

	if err := c.do(
		ctx,
		http.MethodDelete,
		c.componentURL(categorySlug, Slugify(name)),
		nil,
		nil,
	); err != nil {
		return fmt.Errorf(
			"%s: %q in %q: %w",
			errCtx, name, categorySlug, err,
		)
	}

	return nil
}

// ComponentsInCategory lists every component of the
// category.
func (c *REST) ComponentsInCategory(
	ctx context.Context,
	categoryID int,
) ([]Component, error) {
	const errCtx = "listing category components"

	url := c.componentsURL() +
		"?category=" + strconv.Itoa(categoryID)

	comps, err := listPaged[Component](ctx, c, url)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	for i := range comps {
		comps[i].LinkedComponent = linkedComponentSlug(
			comps[i].Repo,
		)
	}

	return comps, nil
}

// MainComponentInCategory returns the single component
// with no link. An empty category, or one where every
// component is linked, yields ErrNoMainComponent; more
// than one unlinked component is reported as corruption.
func (c *REST) MainComponentInCategory(
	ctx context.Context,
	categoryID int,
) (*Component, error) {
	const errCtx = "resolving main component"

	comps, err := c.ComponentsInCategory(
		ctx, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var main *Component

	for i := range comps {
		if comps[i].LinkedComponent != "" {
			continue
		}

		if main != nil {
			return nil, fmt.Errorf(
				"%s: category %d has multiple "+
					"unlinked components",
				errCtx, categoryID,
			)
		}

		main = &comps[i]
	}

	if main == nil {
		return nil, fmt.Errorf(
			"%s: category %d: %w",
			errCtx, categoryID, ErrNoMainComponent,
		)
	}

	return main, nil
}

// pullResult is the response of a repository operation.
type pullResult struct {
	Result bool `json:"result"`
}

// PullComponentRemoteChanges triggers a platform-side
// pull of the component's upstream repository. Whether
// the pull merged cleanly is observed afterwards through
// RepositoryStatus, not through this call.
func (c *REST) PullComponentRemoteChanges(
	ctx context.Context,
	name string,
	categorySlug string,
) error {
	const errCtx = "pulling remote changes"

	var res pullResult

	if err := c.do(
		ctx,
		http.MethodPost,
		c.componentURL(
			categorySlug, Slugify(name),
		)+"repository/",
		map[string]any{"operation": "pull"},
		&res,
	); err != nil {
		return fmt.Errorf(
			"%s: %q: %w", errCtx, name, err,
		)
	}

	if !res.Result {
		slog.Warn(
			"platform reported unclean pull",
			"component", name,
			"category", categorySlug,
		)
	}

	return nil
}

// RepositoryStatus queries the component's repository
// working-copy state.
func (c *REST) RepositoryStatus(
	ctx context.Context,
	name string,
	categorySlug string,
) (*RepositoryStatus, error) {
	const errCtx = "querying repository status"

	var status RepositoryStatus

	if err := c.do(
		ctx,
		http.MethodGet,
		c.componentURL(
			categorySlug, Slugify(name),
		)+"repository/",
		nil,
		&status,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %q: %w", errCtx, name, err,
		)
	}

	return &status, nil
}

// TranslationStats returns the per-language translated
// counts of the component.
func (c *REST) TranslationStats(
	ctx context.Context,
	name string,
	categorySlug string,
) ([]TranslationStats, error) {
	const errCtx = "querying translation statistics"

	stats, err := listPaged[TranslationStats](
		ctx,
		c,
		c.componentURL(
			categorySlug, Slugify(name),
		)+"statistics/",
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %q: %w", errCtx, name, err,
		)
	}

	return stats, nil
}

// categoriesURL is the category collection endpoint.
func (c *REST) categoriesURL() string {
	return c.base + "/api/projects/" + c.project +
		"/categories/"
}

// categoryURL is a single category endpoint.
func (c *REST) categoryURL(id int) string {
	return c.base + "/api/categories/" +
		strconv.Itoa(id) + "/"
}

// componentsURL is the component collection endpoint.
func (c *REST) componentsURL() string {
	return c.base + "/api/projects/" + c.project +
		"/components/"
}

// componentURL is a single component endpoint. The
// component slug is scoped by its category (encoded as
// one path segment, the platform's addressing for
// categorized components), so the same slug may live in
// two categories without colliding.
func (c *REST) componentURL(
	categorySlug string,
	slug string,
) string {
	path := slug
	if categorySlug != "" {
		path = url.PathEscape(
			categorySlug + "/" + slug,
		)
	}

	return c.base + "/api/components/" + c.project +
		"/" + path + "/"
}

// do sends one request with auth headers, encodes body
// as JSON when non-nil, and decodes a 2xx response into
// into. Non-2xx responses become *apiError.
func (c *REST) do(
	ctx context.Context,
	method string,
	url string,
	body any,
	into any,
) error {
	const errCtx = "calling platform"

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf(
				"%s: marshal request: %w",
				errCtx, err,
			)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, url, reader,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: build request: %w", errCtx, err,
		)
	}

	req.Header.Set(
		"Authorization", "Token "+c.token,
	)

	if body != nil {
		req.Header.Set(
			"Content-Type",
			"application/json; charset=utf-8",
		)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf(
			"%s: send request: %w", errCtx, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf(
			"%s: read response: %w", errCtx, err,
		)
	}

	if resp.StatusCode < http.StatusOK ||
		resp.StatusCode >=
			http.StatusMultipleChoices {
		return &apiError{
			Status: resp.StatusCode,
			Body:   string(raw),
		}
	}

	if into == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf(
			"%s: decode response: %w", errCtx, err,
		)
	}

	return nil
}

// listPaged fetches every page of a paginated list
// endpoint, following "next" links.
func listPaged[T any](
	ctx context.Context,
	c *REST,
	url string,
) ([]T, error) {
	var all []T

	for url != "" {
		var pg page[T]

		if err := c.do(
			ctx, http.MethodGet, url, nil, &pg,
		); err != nil {
			return nil, err
		}

		all = append(all, pg.Results...)
		url = pg.Next
	}

	return all, nil
}
