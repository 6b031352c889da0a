// Package translate streams the translation of one finalized utterance using
// counseling-domain instruction profiles.
package translate

import (
	"context"
	"fmt"

	"github.com/realtime-ai/counseling-interpreter/pkg/events"
)

// FragmentFunc receives each piece of output as soon as it is available.
type FragmentFunc func(fragment string)

// Translator translates text for one direction. Implementations call
// onFragment in generation order, and the returned text is exactly the
// concatenation of all fragments.
type Translator interface {
	Name() string
	TranslateStreaming(ctx context.Context, text string, direction events.Direction, onFragment FragmentFunc) (string, error)
}

// Error reports a failed translation. Partial output is never returned
// alongside it.
type Error struct {
	Provider  string
	Direction events.Direction
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s translation %s failed: %v", e.Provider, e.Direction, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sampling parameters shared by all providers.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 500
)

// emit forwards a non-empty fragment.
func emit(onFragment FragmentFunc, fragment string) {
	if fragment == "" || onFragment == nil {
		return
	}
	onFragment(fragment)
}
