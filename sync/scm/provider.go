package scm

import "context"

// Pattern: Strategy -- swap hosting platform without
// changing orchestration logic.

// CommentProvider posts comments on pull requests of a
// source-hosting platform.
type CommentProvider interface {
	Comment(
		ctx context.Context,
		prNumber int,
		body string,
	) error
}

// CommentProviderFunc adapts a plain function to the
// CommentProvider interface.
type CommentProviderFunc func(
	ctx context.Context,
	prNumber int,
	body string,
) error

// Comment delegates to the wrapped function.
func (f CommentProviderFunc) Comment(
	ctx context.Context,
	prNumber int,
	body string,
) error {
	return f(ctx, prNumber, body)
}
