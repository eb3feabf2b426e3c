// Package reconcile converges a category's platform
// component set with the resource groups discovered in
// code. One component per category owns the VCS binding;
// every other component is created as a link to it so
// the repository is cloned exactly once.
package reconcile
