// Package club maps free-text club names to the identifiers stored in the index.
package club

import (
	"sort"
	"strings"
)

// DefaultAliases is the token table used by the indexing pipeline.
var DefaultAliases = map[string]string{
	"arsenal":    "Arsenal",
	"chelsea":    "Chelsea",
	"liverpool":  "Liverpool",
	"manchester": "Manchester_United",
}

// Resolver canonicalises club names through a declarative token table.
type Resolver struct {
	aliases map[string]string
	tokens  []string
}

// NewResolver builds a resolver. Keys are matched case-insensitively.
// A nil or empty table falls back to DefaultAliases.
func NewResolver(aliases map[string]string) *Resolver {
	if len(aliases) == 0 {
		aliases = DefaultAliases
	}
	r := &Resolver{aliases: make(map[string]string, len(aliases))}
	for k, v := range aliases {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || v == "" {
			continue
		}
		r.aliases[k] = v
		r.tokens = append(r.tokens, k)
	}
	sort.Strings(r.tokens)
	return r
}

// Resolve returns the stored identifier for name. The whole name is tried
// first, then each word in order. Unknown names come back unchanged.
func (r *Resolver) Resolve(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	if id, ok := r.aliases[lower]; ok {
		return id
	}
	if id, ok := r.aliases[strings.ReplaceAll(lower, " ", "_")]; ok {
		return id
	}
	for _, w := range strings.FieldsFunc(lower, isSeparator) {
		if id, ok := r.aliases[w]; ok {
			return id
		}
	}
	// already an identifier
	for _, id := range r.aliases {
		if strings.EqualFold(id, name) {
			return id
		}
	}
	return name
}

// ResolveAll canonicalises names in order.
func (r *Resolver) ResolveAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = r.Resolve(n)
	}
	return out
}

// Tokens returns the known tokens, sorted.
func (r *Resolver) Tokens() []string {
	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}

func isSeparator(c rune) bool {
	return c == ' ' || c == '_' || c == '-' || c == '/' || c == '.'
}
