// Package weblatetest provides an in-memory
// weblate.Client for orchestrator and reconciliation
// tests.
package weblatetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Marginy605/weblate-sync/sync/weblate"
)

// Fake is an in-memory translation platform. The zero
// value is not usable; create with New.
type Fake struct {
	mu sync.Mutex

	nextID     int
	categories map[int]*weblate.Category
	components map[int][]weblate.Component

	// Status is returned by RepositoryStatus, keyed by
	// component name.
	Status map[string]weblate.RepositoryStatus

	// Stats is returned by TranslationStats, keyed by
	// component name. Components without an entry
	// report one translated string so they pass the
	// progress gate by default.
	Stats map[string][]weblate.TranslationStats

	// FailPull, when set, is returned by every
	// PullComponentRemoteChanges call.
	FailPull error

	// FailCreate maps component names to injected
	// CreateComponent errors.
	FailCreate map[string]error

	// Waited records every WaitComponentsTasks call.
	Waited [][]string

	// Pulled records component names passed to
	// PullComponentRemoteChanges.
	Pulled []string

	// RemovedCategories records RemoveCategory calls.
	RemovedCategories []int
}

var _ weblate.Client = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		categories: map[int]*weblate.Category{},
		components: map[int][]weblate.Component{},
		Status: map[string]weblate.
			RepositoryStatus{},
		Stats: map[string][]weblate.
			TranslationStats{},
		FailCreate: map[string]error{},
	}
}

// SeedCategory inserts a category as if it pre-existed.
func (f *Fake) SeedCategory(
	branch string,
) *weblate.Category {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.addCategory(branch)
}

// SeedComponent inserts a component into a category.
func (f *Fake) SeedComponent(
	categoryID int,
	comp weblate.Component,
) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.components[categoryID] = append(
		f.components[categoryID], comp,
	)
}

// ComponentNames returns the category's component names
// in insertion order.
func (f *Fake) ComponentNames(
	categoryID int,
) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for _, c := range f.components[categoryID] {
		names = append(names, c.Name)
	}

	return names
}

// Component returns the named component of a category,
// or nil.
func (f *Fake) Component(
	categoryID int,
	name string,
) *weblate.Component {
	f.mu.Lock()
	defer f.mu.Unlock()

	comps := f.components[categoryID]
	for i := range comps {
		if comps[i].Name == name {
			comp := comps[i]

			return &comp
		}
	}

	return nil
}

// addCategory inserts a category. Caller holds the lock.
func (f *Fake) addCategory(
	branch string,
) *weblate.Category {
	f.nextID++

	cat := &weblate.Category{
		ID:   f.nextID,
		Name: branch,
		Slug: weblate.Slugify(branch),
	}
	f.categories[cat.ID] = cat

	return cat
}

// CreateCategoryForBranch implements weblate.Client.
func (f *Fake) CreateCategoryForBranch(
	_ context.Context,
	branch string,
) (*weblate.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, cat := range f.categories {
		if cat.Name == branch {
			existing := *cat

			return &existing, nil
		}
	}

	cat := *f.addCategory(branch)
	cat.WasRecentlyCreated = true

	return &cat, nil
}

// FindCategoryForBranch implements weblate.Client.
func (f *Fake) FindCategoryForBranch(
	_ context.Context,
	branch string,
) (*weblate.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, cat := range f.categories {
		if cat.Name == branch {
			existing := *cat

			return &existing, nil
		}
	}

	return nil, nil
}

// RemoveCategory implements weblate.Client.
func (f *Fake) RemoveCategory(
	_ context.Context,
	id int,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.categories[id]; !ok {
		return fmt.Errorf(
			"category %d not found", id,
		)
	}

	delete(f.categories, id)
	delete(f.components, id)

	f.RemovedCategories = append(
		f.RemovedCategories, id,
	)

	return nil
}

// CreateComponent implements weblate.Client.
func (f *Fake) CreateComponent(
	_ context.Context,
	req weblate.ComponentRequest,
) (*weblate.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailCreate[req.Name]; err != nil {
		return nil, err
	}

	comp := weblate.Component{
		Name:     req.Name,
		Slug:     weblate.Slugify(req.Name),
		FileMask: req.FileMask,
		Template: req.Template,
		Repo:     req.Repo,
		Branch:   req.Branch,
	}

	if req.LinkTo != "" {
		comp.LinkedComponent = weblate.Slugify(
			req.LinkTo,
		)
		comp.Repo = "weblate://project/" +
			comp.LinkedComponent
		comp.Branch = ""
	}

	comps := f.components[req.CategoryID]
	for i := range comps {
		if comps[i].Name != req.Name {
			continue
		}

		if !req.UpdateIfExist {
			return nil, fmt.Errorf(
				"component %q already exists",
				req.Name,
			)
		}

		comps[i] = comp

		return &comp, nil
	}

	f.components[req.CategoryID] = append(
		comps, comp,
	)

	return &comp, nil
}

// RemoveComponent implements weblate.Client.
func (f *Fake) RemoveComponent(
	_ context.Context,
	name string,
	categorySlug string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, cat := range f.categories {
		if cat.Slug != categorySlug {
			continue
		}

		comps := f.components[id]
		for i := range comps {
			if comps[i].Name != name {
				continue
			}

			f.components[id] = append(
				comps[:i], comps[i+1:]...,
			)

			return nil
		}
	}

	return fmt.Errorf(
		"component %q not found in %q",
		name, categorySlug,
	)
}

// ComponentsInCategory implements weblate.Client.
func (f *Fake) ComponentsInCategory(
	_ context.Context,
	categoryID int,
) ([]weblate.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	comps := f.components[categoryID]
	out := make([]weblate.Component, len(comps))
	copy(out, comps)

	return out, nil
}

// MainComponentInCategory implements weblate.Client.
func (f *Fake) MainComponentInCategory(
	_ context.Context,
	categoryID int,
) (*weblate.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var main *weblate.Component

	comps := f.components[categoryID]
	for i := range comps {
		if comps[i].LinkedComponent != "" {
			continue
		}

		if main != nil {
			return nil, fmt.Errorf(
				"category %d has multiple "+
					"unlinked components",
				categoryID,
			)
		}

		main = &comps[i]
	}

	if main == nil {
		return nil, fmt.Errorf(
			"category %d: %w",
			categoryID,
			weblate.ErrNoMainComponent,
		)
	}

	found := *main

	return &found, nil
}

// WaitComponentsTasks implements weblate.Client. Tasks
// complete instantly; the call is only recorded.
func (f *Fake) WaitComponentsTasks(
	_ context.Context,
	names []string,
	_ string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	recorded := make([]string, len(names))
	copy(recorded, names)

	f.Waited = append(f.Waited, recorded)

	return nil
}

// PullComponentRemoteChanges implements weblate.Client.
func (f *Fake) PullComponentRemoteChanges(
	_ context.Context,
	name string,
	_ string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailPull != nil {
		return f.FailPull
	}

	f.Pulled = append(f.Pulled, name)

	return nil
}

// RepositoryStatus implements weblate.Client.
func (f *Fake) RepositoryStatus(
	_ context.Context,
	name string,
	_ string,
) (*weblate.RepositoryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := f.Status[name]

	return &status, nil
}

// TranslationStats implements weblate.Client.
func (f *Fake) TranslationStats(
	_ context.Context,
	name string,
	_ string,
) ([]weblate.TranslationStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if stats, ok := f.Stats[name]; ok {
		out := make(
			[]weblate.TranslationStats, len(stats),
		)
		copy(out, stats)

		return out, nil
	}

	return []weblate.TranslationStats{
		{LanguageCode: "en", Translated: 1},
	}, nil
}
