// Package voice builds and queries the catalog of synthesis voices exposed
// by a speech engine, and tracks the two speaker-slot selections made
// against it.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is recorded when the engine reports no voices at all.
// The condition is sticky until a voices-changed rebuild finds some.
var ErrUnsupported = errors.New("unsupported environment")

// Voice describes one synthesis voice offered by an engine. Instances are
// owned by the engine; the catalog holds read-only copies.
type Voice struct {
	// URI uniquely identifies the voice within its engine.
	URI string
	// Name is the engine's human-readable voice name.
	Name string
	// Lang is the voice's BCP-47 language tag, e.g. "en-US".
	Lang string
}

func (v Voice) String() string {
	return fmt.Sprintf("%s (%s)", v.Name, v.Lang)
}

// Source is the part of a speech engine the catalog consumes: an
// identification string for vendor classification and the raw voice list.
type Source interface {
	Agent() string
	Voices(ctx context.Context) ([]Voice, error)
}

func nameContains(name, needle string) bool {
	return strings.Contains(strings.ToLower(name), needle)
}
