// Package status classifies a component's platform-side
// repository state into actionable conditions after a
// synchronization pass.
package status
