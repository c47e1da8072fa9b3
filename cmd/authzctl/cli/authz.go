// Package cli implements the authzctl subcommands. Each command writes to the
// configured streams and returns a process exit code.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/records"
)

// Exit codes shared by every command.
const (
	ExitOK     = 0
	ExitError  = 1
	ExitDenied = 10
)

// UserResolver finds the actor named on the command line.
type UserResolver interface {
	UserByID(ctx context.Context, id int64) (*authz.Actor, error)
	UserByCode(ctx context.Context, code string) (*authz.Actor, error)
}

// AuthzCLI evaluates decisions outside of an HTTP request.
type AuthzCLI struct {
	engine *authz.Engine
	users  UserResolver
}

// NewAuthzCLI constructs the helper.
func NewAuthzCLI(engine *authz.Engine, users UserResolver) (*AuthzCLI, error) {
	if engine == nil || users == nil {
		return nil, errors.New("authzctl: engine and user resolver are required")
	}
	return &AuthzCLI{engine: engine, users: users}, nil
}

// Streams are the output writers of a command.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (s *Streams) defaults() {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Stderr == nil {
		s.Stderr = os.Stderr
	}
}

// CheckOptions defines the flags of the check command.
type CheckOptions struct {
	Streams
	User       string
	Module     string
	Action     string
	Owner      string
	JSONOutput bool
}

// CheckResult is the JSON form of a check.
type CheckResult struct {
	User    string `json:"user"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Owner   string `json:"owner,omitempty"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// CheckCommand decides one action and exits with ExitDenied when it is not
// allowed.
func (c *AuthzCLI) CheckCommand(ctx context.Context, opts CheckOptions) int {
	opts.defaults()
	if strings.TrimSpace(opts.Module) == "" || strings.TrimSpace(opts.Action) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "check: --module and --action are required")
		return ExitError
	}
	actor, err := c.resolve(ctx, opts.User)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "check: %v\n", err)
		return ExitError
	}

	dec := c.engine.ForActor(actor).Decide(ctx, opts.Module, opts.Action, ownerRef(opts.Owner))
	result := CheckResult{
		User:    actor.Code,
		Module:  opts.Module,
		Action:  opts.Action,
		Owner:   opts.Owner,
		Allowed: dec.Allowed,
		Reason:  dec.Reason,
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(result); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "check: encode json: %v\n", err)
			return ExitError
		}
	} else {
		verdict := "DENY"
		if result.Allowed {
			verdict = "ALLOW"
		}
		_, _ = fmt.Fprintf(opts.Stdout, "%s %s %s.%s (%s)\n", verdict, result.User, result.Module, result.Action, result.Reason)
	}
	if !result.Allowed {
		return ExitDenied
	}
	return ExitOK
}

// GrantsOptions defines the flags of the grants command.
type GrantsOptions struct {
	Streams
	User       string
	Module     string
	JSONOutput bool
}

// GrantsCommand prints the permission codes the user holds.
func (c *AuthzCLI) GrantsCommand(ctx context.Context, opts GrantsOptions) int {
	opts.defaults()
	actor, err := c.resolve(ctx, opts.User)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "grants: %v\n", err)
		return ExitError
	}
	grants, err := c.engine.ForActor(actor).Grants(ctx, opts.Module)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "grants: %v\n", err)
		return ExitError
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(grants); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "grants: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	if grants.Admin {
		_, _ = fmt.Fprintf(opts.Stdout, "%s: admin (all permissions)\n", actor.Code)
		return ExitOK
	}
	for _, code := range grants.Codes {
		_, _ = fmt.Fprintln(opts.Stdout, code)
	}
	return ExitOK
}

// ScopeOptions defines the flags of the scope command.
type ScopeOptions struct {
	Streams
	User string
	Kind string
}

// ScopeCommand prints the row predicate for kind and its SQL rendering.
func (c *AuthzCLI) ScopeCommand(ctx context.Context, opts ScopeOptions) int {
	opts.defaults()
	kind, err := c.engine.Registry().Module(opts.Kind)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "scope: %v\n", err)
		return ExitError
	}
	actor, err := c.resolve(ctx, opts.User)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "scope: %v\n", err)
		return ExitError
	}
	pred := c.engine.ForActor(actor).AccessiblePredicate(ctx, kind)
	clause, args := records.ScopeClause(pred, "owner_code", 1)
	_, _ = fmt.Fprintf(opts.Stdout, "%s %s\nWHERE %s", kind, pred.Kind, clause)
	if len(args) > 0 {
		_, _ = fmt.Fprintf(opts.Stdout, " -- args %v", args)
	}
	_, _ = fmt.Fprintln(opts.Stdout)
	return ExitOK
}

func (c *AuthzCLI) resolve(ctx context.Context, user string) (*authz.Actor, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, errors.New("--user is required")
	}
	var (
		actor *authz.Actor
		err   error
	)
	if id, perr := strconv.ParseInt(user, 10, 64); perr == nil {
		actor, err = c.users.UserByID(ctx, id)
	} else {
		actor, err = c.users.UserByCode(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user, err)
	}
	return actor, nil
}

// ownerRef treats numeric owners as user ids and anything else as a code.
func ownerRef(raw string) authz.OwnerRef {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return authz.OwnerID(id)
	}
	return authz.OwnerCode(raw)
}
