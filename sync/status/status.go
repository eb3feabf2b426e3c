package status

import (
	"context"
	"fmt"

	"github.com/Marginy605/weblate-sync/sync/weblate"
)

// Errors is the classification of one component's
// repository state. Empty fields mean the condition is
// absent. Computed per run, never stored.
type Errors struct {
	// MergeFailure is set when the platform's own pull
	// hit a conflict automatic merge could not
	// resolve. Always fatal: the mirror is in an
	// indeterminate state.
	MergeFailure string

	// NeedsCommit is set when the platform working
	// copy has uncommitted local changes, meaning
	// translators are actively editing. Warning only.
	NeedsCommit string

	// NeedsPush is set when the platform has committed
	// changes not yet pushed upstream. This blocks any
	// validation that depends on pushed state.
	NeedsPush string
}

// Classify queries the component's repository status and
// maps it to conditions. The three conditions are
// evaluated independently; callers check MergeFailure
// first and stop on it, since a failed merge makes the
// other two meaningless.
func Classify(
	ctx context.Context,
	client weblate.Client,
	name string,
	categorySlug string,
) (Errors, error) {
	const errCtx = "classifying repository health"

	repo, err := client.RepositoryStatus(
		ctx, name, categorySlug,
	)
	if err != nil {
		return Errors{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var out Errors

	if repo.MergeFailure != "" || repo.NeedsMerge {
		detail := repo.MergeFailure
		if detail == "" {
			detail = "remote changes could not be " +
				"merged automatically"
		}

		out.MergeFailure = fmt.Sprintf(
			"component %q failed to merge remote "+
				"changes: %s",
			name, detail,
		)
	}

	if repo.NeedsCommit {
		out.NeedsCommit = fmt.Sprintf(
			"component %q has uncommitted changes "+
				"on the platform; translators are "+
				"likely editing right now",
			name,
		)
	}

	if repo.NeedsPush {
		out.NeedsPush = fmt.Sprintf(
			"component %q has commits that were "+
				"never pushed upstream (usually an "+
				"automated formatting commit); push "+
				"the component repository manually "+
				"and rerun",
			name,
		)
	}

	return out, nil
}
