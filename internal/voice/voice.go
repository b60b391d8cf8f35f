// Package voice picks a synthesis voice from a catalog by a loose query
// such as "en-GB wavenet" or "nova".
package voice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/readaloud/internal/synth"
)

// ErrNoMatch is returned when no voice matches a query.
var ErrNoMatch = errors.New("no voice matches")

type catalog []synth.Voice

func (c catalog) String(i int) string {
	v := c[i]
	return strings.Join([]string{v.Name, v.LanguageCode, v.Gender}, " ")
}

func (c catalog) Len() int {
	return len(c)
}

// Filter returns the voices matching query, best match first. An empty
// query returns every voice in catalog order.
func Filter(query string, voices []synth.Voice) []synth.Voice {
	query = strings.TrimSpace(query)
	if query == "" {
		return voices
	}

	matches := fuzzy.FindFrom(query, catalog(voices))
	out := make([]synth.Voice, len(matches))
	for i, m := range matches {
		out[i] = voices[m.Index]
	}
	return out
}

// Select returns the voice best matching query. A case-insensitive exact
// name wins over any fuzzy match.
func Select(query string, voices []synth.Voice) (synth.Voice, error) {
	query = strings.TrimSpace(query)
	for _, v := range voices {
		if strings.EqualFold(v.Name, query) {
			return v, nil
		}
	}

	if query != "" {
		if found := Filter(query, voices); len(found) > 0 {
			return found[0], nil
		}
	}
	return synth.Voice{}, fmt.Errorf("%w %q", ErrNoMatch, query)
}
