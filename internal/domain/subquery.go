package domain

import (
	"fmt"
	"strings"
)

// MaxQueryChars is the default upper bound on the user question length.
const MaxQueryChars = 2000

// Query is a validated user question.
type Query string

// NewQuery trims raw and validates it against maxChars (0 means MaxQueryChars).
func NewQuery(raw string, maxChars int) (Query, error) {
	if maxChars <= 0 {
		maxChars = MaxQueryChars
	}
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", fmt.Errorf("%w: user_query is required", ErrInvalidQuery)
	}
	if len([]rune(q)) > maxChars {
		return "", fmt.Errorf("%w: user_query exceeds %d characters", ErrInvalidQuery, maxChars)
	}
	return Query(q), nil
}

func (q Query) String() string { return string(q) }

// Subquery is one decomposed sub-question with its index key.
type Subquery struct {
	Key  string
	Text string
}

// SubqueryMap is an insertion-ordered mapping from index key to sub-question.
type SubqueryMap struct {
	items []Subquery
	index map[string]int
}

// NewSubqueryMap returns an empty map.
func NewSubqueryMap() *SubqueryMap {
	return &SubqueryMap{index: make(map[string]int)}
}

// Add appends a sub-question. A repeated key overwrites the text in place.
func (m *SubqueryMap) Add(key, text string) {
	if i, ok := m.index[key]; ok {
		m.items[i].Text = text
		return
	}
	m.index[key] = len(m.items)
	m.items = append(m.items, Subquery{Key: key, Text: text})
}

// Len returns the number of sub-questions.
func (m *SubqueryMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.items)
}

// Texts returns the sub-question texts in insertion order.
func (m *SubqueryMap) Texts() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.items))
	for i, it := range m.items {
		out[i] = it.Text
	}
	return out
}
