// Package scm abstracts the source-hosting platform.
// The orchestrator only needs one capability from it:
// posting a comment on a pull request so reviewers see
// failure reasons without consulting run logs.
package scm
