package syncer

import (
	"strings"

	"github.com/valyala/fasttemplate"
)

// Comment template tags.
const (
	startTag = "{{"
	endTag   = "}}"
)

// Pull request comment bodies. Rendered with
// fasttemplate so the wording stays in one place.
const (
	trunkMissingTemplate = "" +
		":no_entry: Translation check cannot run: " +
		"branch `{{branch}}` has no category on the " +
		"translation platform yet. Run the branch " +
		"synchronization for `{{branch}}` first, " +
		"then rerun this check."

	mergeConflictTemplate = "" +
		":boom: The translation platform failed to " +
		"merge remote changes for `{{branch}}`:\n\n" +
		"```\n{{detail}}\n```\n\n" +
		"Resolve the conflict on the platform " +
		"repository and rerun the check."

	unpushedTemplate = "" +
		":warning: The translation platform holds " +
		"commits for `{{branch}}` that were never " +
		"pushed upstream:\n\n{{detail}}\n\n" +
		"Push the component repository from the " +
		"platform, then rerun the check."

	untranslatedTemplate = "" +
		":speech_balloon: The following components " +
		"of this pull request have no translated " +
		"strings yet:\n\n{{components}}\n" +
		"\nAdd the translations on the platform and " +
		"rerun the check."
)

func trunkMissingComment(branch string) string {
	return render(trunkMissingTemplate, map[string]any{
		"branch": branch,
	})
}

func mergeConflictComment(
	branch string,
	detail string,
) string {
	return render(
		mergeConflictTemplate,
		map[string]any{
			"branch": branch,
			"detail": detail,
		},
	)
}

func unpushedComment(
	branch string,
	detail string,
) string {
	return render(unpushedTemplate, map[string]any{
		"branch": branch,
		"detail": detail,
	})
}

func untranslatedComment(
	branch string,
	components []string,
) string {
	var sb strings.Builder

	for _, name := range components {
		sb.WriteString("- `")
		sb.WriteString(name)
		sb.WriteString("`\n")
	}

	return render(untranslatedTemplate, map[string]any{
		"branch":     branch,
		"components": sb.String(),
	})
}

// render substitutes tags. Unknown tags cannot occur
// because the templates above are compile-time
// constants.
func render(
	tpl string,
	vars map[string]any,
) string {
	return fasttemplate.ExecuteString(
		tpl, startTag, endTag, vars,
	)
}
