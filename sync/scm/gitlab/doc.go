// Package gitlab posts merge request notes on GitLab.
package gitlab
