package weblate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// task is the platform's view of one background
// operation. Completed covers both success and failure;
// either way the task is terminal.
type task struct {
	Completed bool `json:"completed"`
}

// WaitComponentsTasks blocks until every named
// component's background task reaches a terminal state.
// The wait is bounded by the configured timeout and the
// caller's context; a component still busy at the
// deadline fails the call rather than being dropped.
func (c *REST) WaitComponentsTasks(
	ctx context.Context,
	names []string,
	categorySlug string,
) error {
	const errCtx = "waiting for component tasks"

	if len(names) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(
		ctx, c.waitTimeout,
	)
	defer cancel()

	pending := make(map[string]struct{}, len(names))
	for _, name := range names {
		pending[name] = struct{}{}
	}

	slog.Info(
		"waiting for component tasks",
		"count", len(pending),
		"category", categorySlug,
	)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		for name := range pending {
			idle, err := c.componentIdle(
				ctx, name, categorySlug,
			)
			if err != nil {
				// A poll cut short by the deadline
				// reports the same summary as an
				// ordinary timeout.
				if ctx.Err() != nil {
					return fmt.Errorf(
						"%s: %d components still "+
							"busy: %w",
						errCtx, len(pending), ctx.Err(),
					)
				}

				return fmt.Errorf(
					"%s: %q: %w", errCtx, name, err,
				)
			}

			if idle {
				delete(pending, name)
			}
		}

		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf(
				"%s: %d components still busy: %w",
				errCtx, len(pending), ctx.Err(),
			)
		case <-ticker.C:
		}
	}
}

// componentIdle reports whether the component has no
// in-flight background task.
func (c *REST) componentIdle(
	ctx context.Context,
	name string,
	categorySlug string,
) (bool, error) {
	var comp Component

	if err := c.do(
		ctx,
		http.MethodGet,
		c.componentURL(categorySlug, Slugify(name)),
		nil,
		&comp,
	); err != nil {
		return false, err
	}

	if comp.TaskURL == "" {
		return true, nil
	}

	var tk task

	if err := c.do(
		ctx,
		http.MethodGet,
		comp.TaskURL,
		nil,
		&tk,
	); err != nil {
		return false, err
	}

	return tk.Completed, nil
}
