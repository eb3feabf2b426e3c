// Package github posts pull request comments on GitHub.
package github
