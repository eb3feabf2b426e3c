// Package syncer orchestrates translation platform
// state for one repository branch. It covers three
// flows: mirroring a trunk branch into a category,
// validating an open pull request against a disposable
// category clone, and tearing that clone down once the
// pull request closes.
package syncer
