package profile

import "errors"

var (
	// ErrStaleProfile rejects a profile with a zero interval or no rules.
	// The previously active profile stays in effect.
	ErrStaleProfile = errors.New("profile: zero interval or empty rule set")

	// ErrInvalidRule indicates a malformed threshold rule.
	ErrInvalidRule = errors.New("profile: invalid rule")

	// ErrDuplicateRule indicates two rules in one profile share a name.
	ErrDuplicateRule = errors.New("profile: duplicate rule name")

	// ErrUnknownProfile is returned by Set.Get for a name not in the set.
	ErrUnknownProfile = errors.New("profile: unknown profile")
)
