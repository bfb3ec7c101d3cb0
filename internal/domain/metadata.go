package domain

import "strings"

// Metadata field names stored with every indexed passage.
const (
	FieldYear     = "year"
	FieldClub     = "club"
	FieldEntities = "entities"
	FieldText     = "text"
)

// MetadataFilter holds the optional constraints pulled from the question.
type MetadataFilter struct {
	Years Attribute
	Clubs Attribute
}

// EntityLookup is the published list of known entity names.
type EntityLookup struct {
	names   []string
	byLower map[string]string
	version string
}

// NewEntityLookup builds a lookup, dropping blanks and case-insensitive duplicates.
func NewEntityLookup(version string, names []string) EntityLookup {
	l := EntityLookup{byLower: make(map[string]string, len(names)), version: version}
	for _, n := range names {
		a := NewAttribute(n)
		if !a.Present() {
			continue
		}
		n = a.values[0]
		k := lowerKey(n)
		if _, ok := l.byLower[k]; ok {
			continue
		}
		l.byLower[k] = n
		l.names = append(l.names, n)
	}
	return l
}

// Names returns the entity names in published order.
func (l EntityLookup) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Len returns the number of entities.
func (l EntityLookup) Len() int { return len(l.names) }

// Version identifies the published revision, empty when unknown.
func (l EntityLookup) Version() string { return l.version }

// Canonical returns the published spelling of name. Case and trailing
// periods are ignored, so "afc" and "A.F.C." name the same entity.
func (l EntityLookup) Canonical(name string) (string, bool) {
	n, ok := l.byLower[lowerKey(name)]
	return n, ok
}

func lowerKey(s string) string { return strings.ToLower(strings.TrimRight(s, ".")) }
