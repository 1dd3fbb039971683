// Package apperr provides the component-local "wrap with context and
// return" error convention used throughout this repo, in place of the
// teacher's alice-bnuy/errutil dependency (which is not importable
// outside the teacher's own module).
package apperr

import "fmt"

// Wrap annotates err with a component/operation label, in the style of
// the teacher's errutil.HandleDiscordError callers: every fallible
// boundary call gets a short, greppable prefix.
func Wrap(component, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s: %w", component, op, err)
}

// Do runs fn and wraps any returned error with component/op, mirroring
// errutil.HandleDiscordError's "run and annotate" shape but without a
// global handler registry.
func Do(component, op string, fn func() error) error {
	return Wrap(component, op, fn())
}
