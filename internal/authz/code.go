package authz

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Scope narrows a permission to every record or to records the actor owns.
type Scope uint8

const (
	// ScopeNone marks an unscoped grant such as "candidates.create".
	ScopeNone Scope = iota
	// ScopeAll grants the action on every record of the module.
	ScopeAll
	// ScopeOwn grants the action only on records owned by the actor.
	ScopeOwn
)

// String returns the serialized suffix of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeOwn:
		return "own"
	default:
		return ""
	}
}

// Code is a structured permission code: "<module>.<action>[.all|.own]".
type Code struct {
	Module string
	Action string
	Scope  Scope
}

// String serializes the code in canonical form.
func (c Code) String() string {
	if c.Scope == ScopeNone {
		return c.Module + "." + c.Action
	}
	return c.Module + "." + c.Action + "." + c.Scope.String()
}

// Unscoped returns the code with its scope dropped.
func (c Code) Unscoped() Code {
	return Code{Module: c.Module, Action: c.Action}
}

// WithScope returns a copy of the code carrying scope s.
func (c Code) WithScope(s Scope) Code {
	c.Scope = s
	return c
}

// NormalizeToken folds case and unifies separators so that "Edit_Own",
// "edit-own" and "edit.own" all become "edit.own".
func NormalizeToken(token string) string {
	token = strings.TrimSpace(cases.Fold().String(token))
	token = strings.NewReplacer(":", ".", "/", ".").Replace(token)
	for _, sep := range []string{"_", "-"} {
		for _, suffix := range []string{"own", "all"} {
			if strings.HasSuffix(token, sep+suffix) {
				token = strings.TrimSuffix(token, sep+suffix) + "." + suffix
			}
		}
	}
	return strings.Trim(token, ".")
}

// ParseAction parses an action token for the given module. The token may
// carry the module as a prefix ("candidates.edit.own") or not ("edit_own").
func ParseAction(module, action string) (Code, error) {
	module = NormalizeToken(module)
	if module == "" || strings.Contains(module, ".") {
		return Code{}, fmt.Errorf("%w: module %q", ErrMalformedRule, module)
	}
	token := NormalizeToken(action)
	token = strings.TrimPrefix(token, module+".")
	return parseParts(module, strings.Split(token, "."))
}

// ParseCode parses a fully qualified permission code.
func ParseCode(raw string) (Code, error) {
	parts := strings.Split(NormalizeToken(raw), ".")
	if len(parts) < 2 {
		return Code{}, fmt.Errorf("%w: %q", ErrMalformedRule, raw)
	}
	return parseParts(parts[0], parts[1:])
}

func parseParts(module string, parts []string) (Code, error) {
	code := Code{Module: module}
	if n := len(parts); n > 1 {
		switch parts[n-1] {
		case "all":
			code.Scope = ScopeAll
			parts = parts[:n-1]
		case "own":
			code.Scope = ScopeOwn
			parts = parts[:n-1]
		}
	}
	if len(parts) != 1 || parts[0] == "" {
		return Code{}, fmt.Errorf("%w: %s.%s", ErrMalformedRule, module, strings.Join(parts, "."))
	}
	code.Action = parts[0]
	return code, nil
}
