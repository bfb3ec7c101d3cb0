// Package reply parses free-text model output into structured values.
package reply

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// StripFences removes a surrounding markdown code fence, with or without a language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// IsNone reports whether s is the "nothing found" sentinel, e.g. None, "none", None.
func IsNone(s string) bool {
	return strings.EqualFold(unquote(s), "none")
}

// List parses a comma-separated answer of short tokens such as years or club names.
// Items lose surrounding quotes, brackets and periods.
// The sentinel yields (nil, nil). Items failing valid make the whole reply unusable.
func List(s string, valid func(string) bool) ([]string, error) {
	return split(s, unquote, valid)
}

// Names parses a comma-separated list of proper names. Items lose only
// surrounding quotes and whitespace, so "A.F.C." keeps its final period.
// An enclosing [ ] around the whole reply is dropped.
func Names(s string) ([]string, error) {
	s = StripFences(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return split(s, trimQuotes, nil)
}

func split(s string, clean func(string) string, valid func(string) bool) ([]string, error) {
	s = StripFences(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty reply", domain.ErrMalformedResponse)
	}
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("%w: multi-line reply", domain.ErrMalformedResponse)
	}
	if IsNone(s) {
		return nil, nil
	}

	var out []string
	for _, item := range strings.Split(s, ",") {
		item = clean(item)
		if item == "" {
			continue
		}
		if IsNone(item) {
			continue
		}
		if valid != nil && !valid(item) {
			return nil, fmt.Errorf("%w: unexpected item %q", domain.ErrMalformedResponse, item)
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no items in %q", domain.ErrMalformedResponse, s)
	}
	return out, nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`.[] ")
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'` ")
}
