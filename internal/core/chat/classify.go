package chat

import (
	"fmt"
	"strings"
)

// Category is the topic tag attached to a message when it is created.
type Category string

const (
	CategoryGeneral Category = "general"
	CategoryHealth  Category = "health"
	CategoryLegal   Category = "legal"
	CategoryCareer  Category = "career"
	CategorySupport Category = "support"
)

type rule struct {
	category Category
	keywords []string
}

// rules are evaluated in order; the first category with any keyword
// contained in the lowercased text wins. Matching is by substring, so
// "worker" is classified as career.
var rules = []rule{
	{CategoryHealth, []string{"health", "sick", "doctor"}},
	{CategoryLegal, []string{"right", "law", "legal"}},
	{CategoryCareer, []string{"job", "career", "work"}},
	{CategorySupport, []string{"help", "support", "feel"}},
}

// Classify returns the category for text. It is pure and deterministic.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}

// Categories returns every category in classification priority order,
// followed by general.
func Categories() []Category {
	out := make([]Category, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, CategoryGeneral)
}

// ParseCategory converts a stored or wire value into a Category. An empty
// value is read as general.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryGeneral, nil
	}

	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryGeneral, CategoryHealth, CategoryLegal, CategoryCareer, CategorySupport:
		return true
	default:
		return false
	}
}

// Filter returns the messages tagged with category. An empty category or
// "all" returns a copy of msgs.
func Filter(msgs []Message, category string) []Message {
	out := make([]Message, 0, len(msgs))
	if category == "" || category == "all" {
		return append(out, msgs...)
	}

	for _, m := range msgs {
		if string(m.Category) == category {
			out = append(out, m)
		}
	}
	return out
}
