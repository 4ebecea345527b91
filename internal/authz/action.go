// Package authz implements the capability check at the heart of the
// authorization engine: parsing granted-action identifiers, resolving a
// role's full action set, and answering allow/deny for a required action.
package authz

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vantage-ops/vantage/internal/shared"
)

// ActionKind discriminates the two accepted action identifier shapes.
type ActionKind int

const (
	// ActionRoute is a route-scoped identifier: METHOD:/path/with/:param/segments.
	ActionRoute ActionKind = iota
	// ActionLegacy is one of the fixed coarse keywords retained for older records.
	ActionLegacy
)

var routeMethods = map[string]struct{}{
	"GET":    {},
	"POST":   {},
	"PUT":    {},
	"PATCH":  {},
	"DELETE": {},
}

var legacyKeywords = map[string]struct{}{
	"view":   {},
	"create": {},
	"modify": {},
	"delete": {},
	"lock":   {},
	"export": {},
}

// templatePattern accepts one or more /segments where a segment is either a
// literal or a :param placeholder.
var templatePattern = regexp.MustCompile(`^(/(?:[A-Za-z0-9_.-]+|:[A-Za-z0-9_]+))+$`)

// Action is a granted-action identifier parsed into its tagged form. It is
// parsed once at grant-write time and compared in normalized form, never
// re-parsed on the check path.
type Action struct {
	Kind     ActionKind
	Method   string // route-scoped only, normalized upper-case
	Template string // route-scoped only
	Keyword  string // legacy only, normalized lower-case
}

// String returns the normalized identifier used for storage and comparison.
func (a Action) String() string {
	if a.Kind == ActionLegacy {
		return a.Keyword
	}
	return a.Method + ":" + a.Template
}

// ParseAction validates raw against the two accepted shapes and returns the
// tagged form. Anything else fails with shared.ErrInvalidActionIdentifier.
func ParseAction(raw string) (Action, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Action{}, fmt.Errorf("%w: empty identifier", shared.ErrInvalidActionIdentifier)
	}

	if i := strings.Index(s, ":"); i >= 0 && strings.HasPrefix(s[i+1:], "/") {
		method := strings.ToUpper(s[:i])
		template := s[i+1:]
		if _, ok := routeMethods[method]; !ok {
			return Action{}, fmt.Errorf("%w: unknown method in %q", shared.ErrInvalidActionIdentifier, raw)
		}
		if !templatePattern.MatchString(template) {
			return Action{}, fmt.Errorf("%w: malformed route template in %q", shared.ErrInvalidActionIdentifier, raw)
		}
		return Action{Kind: ActionRoute, Method: method, Template: template}, nil
	}

	keyword := strings.ToLower(s)
	if _, ok := legacyKeywords[keyword]; ok {
		return Action{Kind: ActionLegacy, Keyword: keyword}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", shared.ErrInvalidActionIdentifier, raw)
}

// NormalizeActions parses every element and returns the normalized
// identifiers. A single invalid element fails the whole list.
func NormalizeActions(raw []string) ([]string, error) {
	normalized := make([]string, 0, len(raw))
	for _, r := range raw {
		action, err := ParseAction(r)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, action.String())
	}
	return normalized, nil
}
