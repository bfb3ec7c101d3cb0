package domain

import "strings"

// Attribute is an optional, order-preserving set of strings.
// The zero value is absent. A present Attribute always holds at least one value.
type Attribute struct {
	values []string
}

// Absent returns an absent Attribute.
func Absent() Attribute { return Attribute{} }

// NewAttribute builds an Attribute from values, trimming blanks and dropping
// duplicates while keeping first-seen order. No usable values yields absent.
func NewAttribute(values ...string) Attribute {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return Attribute{}
	}
	return Attribute{values: out}
}

// Present reports whether the attribute carries values.
func (a Attribute) Present() bool { return len(a.values) > 0 }

// Values returns a copy of the values, nil when absent.
func (a Attribute) Values() []string {
	if len(a.values) == 0 {
		return nil
	}
	out := make([]string, len(a.values))
	copy(out, a.values)
	return out
}

// Len returns the number of values.
func (a Attribute) Len() int { return len(a.values) }

func (a Attribute) String() string {
	if !a.Present() {
		return "<absent>"
	}
	return strings.Join(a.values, ",")
}
