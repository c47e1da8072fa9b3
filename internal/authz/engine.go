// Package authz decides whether an actor may perform an action on a module.
//
// Rules come from either the persisted RBAC model or the static legacy level
// table; both are reduced to a PermissionSet and matched by the same routine.
// Every request gets its own DecisionContext holding the actor, the decision
// cache and the loaded permission sets, so nothing leaks between requests.
// Every failure path denies.
package authz

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultStoreTimeout = 2 * time.Second
	defaultCacheSize    = 512
)

// Decision outcomes reported to a Recorder.
const (
	OutcomeAllow = "allow"
	OutcomeDeny  = "deny"
	OutcomeError = "error"
)

// Recorder observes decisions, typically for metrics.
type Recorder interface {
	ObserveDecision(module, outcome string)
}

// Options configures an Engine.
type Options struct {
	RBAC         RuleProvider
	Legacy       RuleProvider
	Owners       OwnerStore
	Registry     Registry
	Logger       *slog.Logger
	Recorder     Recorder
	StoreTimeout time.Duration
	CacheSize    int
}

// Engine holds the immutable, process-wide parts of the decision pipeline.
type Engine struct {
	rbac      RuleProvider
	legacy    RuleProvider
	owners    OwnerStore
	registry  Registry
	logger    *slog.Logger
	recorder  Recorder
	timeout   time.Duration
	cacheSize int
}

// NewEngine builds an Engine. Missing providers deny every lookup.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		rbac:      opts.RBAC,
		legacy:    opts.Legacy,
		owners:    opts.Owners,
		registry:  opts.Registry,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		timeout:   opts.StoreTimeout,
		cacheSize: opts.CacheSize,
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.timeout <= 0 {
		e.timeout = defaultStoreTimeout
	}
	if e.cacheSize <= 0 {
		e.cacheSize = defaultCacheSize
	}
	return e
}

// NewContext starts a decision context that resolves its actor from identity
// on first use.
func (e *Engine) NewContext(identity IdentityProvider) *DecisionContext {
	return newDecisionContext(e, identity)
}

// ForActor starts a decision context bound to a known actor.
func (e *Engine) ForActor(actor *Actor) *DecisionContext {
	return newDecisionContext(e, StaticIdentity{Actor: actor})
}

// Registry exposes the entity kinds the engine accepts.
func (e *Engine) Registry() Registry {
	return e.registry
}

func (e *Engine) providerFor(src RuleSource) RuleProvider {
	switch src.Kind {
	case SourceKindRBAC:
		return e.rbac
	case SourceKindLegacy:
		return e.legacy
	default:
		return nil
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) observe(module, outcome string) {
	if e.recorder != nil {
		e.recorder.ObserveDecision(module, outcome)
	}
}
