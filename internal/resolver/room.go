// Package resolver turns the room references users type on the command line into rooms.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dyluth/warren/pkg/board"
)

// MinShortIDLength is the minimum required length for ID prefixes.
const MinShortIDLength = 6

// ResolveRoom finds the room a reference names. A reference is, in order of precedence:
// a full UUID, an exact room name (case-insensitive), or an ID prefix of at least
// MinShortIDLength characters.
func ResolveRoom(rooms []board.Room, ref string) (board.Room, error) {
	ref = strings.TrimSpace(ref)

	if _, err := uuid.Parse(ref); err == nil {
		for _, r := range rooms {
			if strings.EqualFold(r.ID, ref) {
				return r, nil
			}
		}
		return board.Room{}, &NotFoundError{Ref: ref}
	}

	var byName []board.Room
	for _, r := range rooms {
		if strings.EqualFold(r.Name, ref) {
			byName = append(byName, r)
		}
	}
	switch len(byName) {
	case 0:
	case 1:
		return byName[0], nil
	default:
		return board.Room{}, newAmbiguousError(ref, byName)
	}

	if len(ref) < MinShortIDLength {
		return board.Room{}, &NotFoundError{Ref: ref, TooShort: true}
	}

	var byPrefix []board.Room
	prefix := strings.ToLower(ref)
	for _, r := range rooms {
		if strings.HasPrefix(r.ID, prefix) {
			byPrefix = append(byPrefix, r)
		}
	}
	switch len(byPrefix) {
	case 0:
		return board.Room{}, &NotFoundError{Ref: ref}
	case 1:
		return byPrefix[0], nil
	default:
		return board.Room{}, newAmbiguousError(ref, byPrefix)
	}
}

// NotFoundError indicates no room matched the reference.
type NotFoundError struct {
	Ref      string
	TooShort bool // The reference matched no name and is too short to be used as an ID prefix
}

func (e *NotFoundError) Error() string {
	if e.TooShort {
		return fmt.Sprintf("no room named '%s' (ID prefixes must be at least %d characters)", e.Ref, MinShortIDLength)
	}
	return fmt.Sprintf("no room found matching '%s'", e.Ref)
}

// AmbiguousError indicates several rooms matched the reference.
type AmbiguousError struct {
	Ref     string
	Matches []board.Room
}

func newAmbiguousError(ref string, matches []board.Room) *AmbiguousError {
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return &AmbiguousError{Ref: ref, Matches: matches}
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous room '%s' matches %d rooms", e.Ref, len(e.Matches))
}

// Describe lists the matching rooms for the user (up to 10, then "...and N more").
func (e *AmbiguousError) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' matches %d rooms:\n", e.Ref, len(e.Matches))

	shown := e.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, r := range shown {
		fmt.Fprintf(&b, "  %s  %s (%s)\n", r.ID, r.Name, r.Category)
	}
	if len(e.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-10)
	}

	b.WriteString("\nUse the full room ID or a longer prefix.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
