// Package weblate is the typed boundary to the
// translation platform. It covers category and component
// lifecycle, repository state and translation progress
// queries, and the task barrier that waits for the
// platform's background clone/pull operations. No
// business logic lives here.
package weblate
