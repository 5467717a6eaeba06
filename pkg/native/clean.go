// SPDX-License-Identifier: MPL-2.0

package native

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

// Clean removes every derived object and every link output, then runs the
// cleanup script if one is configured. Files already absent are ignored.
// It returns the paths that were removed.
func (b *Builder) Clean(ctx context.Context) ([]string, error) {
	sources, specs, err := b.Plan()
	if err != nil {
		return nil, err
	}

	targets := Objects(sources)
	for _, spec := range specs {
		targets = append(targets, spec.Output)
	}

	var removed []string
	for _, t := range targets {
		err := os.Remove(b.path(t))
		switch {
		case err == nil:
			b.logger.Debug("removed", "path", t)
			removed = append(removed, t)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, err
		}
	}

	if script := b.cfg.CleanupScript; script != "" {
		b.logger.Info("running cleanup script", "script", script)
		if err := b.runner.Run(ctx, b.command(script)); err != nil {
			return removed, &ScriptError{Script: script, Cause: err}
		}
	}
	return removed, nil
}
