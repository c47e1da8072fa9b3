package authz

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Decision is the outcome of a single check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err converts a denial into a *PermissionError. It returns nil when allowed.
func (d Decision) Err(message string) error {
	if d.Allowed {
		return nil
	}
	return NewPermissionError(message)
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Reason: reason} }

type decisionKey struct {
	actorID int64
	code    Code
	owner   string
}

// Grants summarises what the current actor holds for a module.
type Grants struct {
	Admin bool     `json:"admin"`
	Codes []string `json:"codes"`
}

// DecisionContext scopes actor resolution and every cache to one request.
// It is safe for concurrent use by the goroutines serving that request.
type DecisionContext struct {
	engine   *Engine
	identity IdentityProvider
	owners   *OwnershipResolver

	// gate is held shared by decisions and exclusively by ClearCache.
	gate sync.RWMutex

	mu          sync.Mutex
	actorLoaded bool
	actor       *Actor
	sets        map[int64]PermissionSet
	ownerIDs    map[string]int64

	decisions *lru.Cache[decisionKey, Decision]
	loads     singleflight.Group
}

func newDecisionContext(e *Engine, identity IdentityProvider) *DecisionContext {
	// NewEngine guarantees a positive size, the only failure lru.New reports.
	cache, _ := lru.New[decisionKey, Decision](e.cacheSize)
	d := &DecisionContext{
		engine:    e,
		identity:  identity,
		sets:      make(map[int64]PermissionSet),
		ownerIDs:  make(map[string]int64),
		decisions: cache,
	}
	d.owners = NewOwnershipResolver(memoOwners{d}, e.logger)
	return d
}

// Actor returns the resolved actor, or nil for anonymous requests.
func (d *DecisionContext) Actor(ctx context.Context) *Actor {
	d.gate.RLock()
	defer d.gate.RUnlock()
	return d.currentActor(ctx)
}

// Decide resolves (module, action, ref) into an explicit Decision.
func (d *DecisionContext) Decide(ctx context.Context, module, action string, ref OwnerRef) Decision {
	d.gate.RLock()
	defer d.gate.RUnlock()
	return d.decide(ctx, module, action, ref)
}

// Can reports whether the current actor may perform action on module.
func (d *DecisionContext) Can(ctx context.Context, module, action string, ref OwnerRef) bool {
	return d.Decide(ctx, module, action, ref).Allowed
}

// CanAction checks base+".all", then base+".own" against ref when supplied.
func (d *DecisionContext) CanAction(ctx context.Context, module, base string, ref OwnerRef) bool {
	d.gate.RLock()
	defer d.gate.RUnlock()
	return d.canAction(ctx, module, base, ref)
}

// Require is the hard gate: it returns a *PermissionError unless CanAction
// allows. An empty message falls back to a generic sentence.
func (d *DecisionContext) Require(ctx context.Context, module, action string, ref OwnerRef, message string) error {
	if d.CanAction(ctx, module, action, ref) {
		return nil
	}
	if message == "" {
		message = defaultDenialMessage(module, action)
	}
	return NewPermissionError(message)
}

// AccessiblePredicate describes which rows of kind the actor may view.
func (d *DecisionContext) AccessiblePredicate(ctx context.Context, kind string) AccessPredicate {
	d.gate.RLock()
	defer d.gate.RUnlock()

	module, ok := d.engine.registry.Lookup(kind)
	if !ok {
		d.engine.logger.Warn("authz predicate for unregistered kind", slog.String("kind", kind))
		return AccessPredicate{Kind: AlwaysFalse}
	}
	actor := d.currentActor(ctx)
	if actor == nil {
		return AccessPredicate{Kind: AlwaysFalse}
	}
	if actor.IsAdmin() || d.decide(ctx, module, "view.all", NoOwner).Allowed {
		return AccessPredicate{Kind: AlwaysTrue}
	}
	set, err := d.permissionsFor(ctx, actor)
	if err != nil {
		d.fail(module, "view.own", err)
		return AccessPredicate{Kind: AlwaysFalse}
	}
	if set.Owned(Code{Module: module, Action: "view"}) {
		return AccessPredicate{Kind: OwnedByActor, ActorID: actor.ID}
	}
	return AccessPredicate{Kind: AlwaysFalse}
}

// Grants lists the codes the actor holds, limited to module when non-empty.
func (d *DecisionContext) Grants(ctx context.Context, module string) (Grants, error) {
	d.gate.RLock()
	defer d.gate.RUnlock()

	actor := d.currentActor(ctx)
	if actor == nil {
		return Grants{}, nil
	}
	if actor.IsAdmin() {
		return Grants{Admin: true}, nil
	}
	set, err := d.permissionsFor(ctx, actor)
	if err != nil {
		return Grants{}, err
	}
	return Grants{Codes: set.Strings(NormalizeToken(module))}, nil
}

// ClearCache drops cached decisions, permission sets and owner lookups. It
// waits for in-flight decisions to finish.
func (d *DecisionContext) ClearCache() {
	d.gate.Lock()
	defer d.gate.Unlock()
	d.decisions.Purge()
	d.mu.Lock()
	d.sets = make(map[int64]PermissionSet)
	d.ownerIDs = make(map[string]int64)
	d.mu.Unlock()
}

func (d *DecisionContext) canAction(ctx context.Context, module, base string, ref OwnerRef) bool {
	code, err := ParseAction(module, base)
	if err != nil {
		d.fail(module, base, err)
		return false
	}
	if code.Scope != ScopeNone {
		return d.decide(ctx, module, base, ref).Allowed
	}
	if d.decide(ctx, module, code.Action+".all", NoOwner).Allowed {
		return true
	}
	return ref.Present() && d.decide(ctx, module, code.Action+".own", ref).Allowed
}

func (d *DecisionContext) decide(ctx context.Context, module, action string, ref OwnerRef) Decision {
	actor := d.currentActor(ctx)
	if actor == nil {
		return deny("unauthenticated")
	}
	if actor.IsAdmin() {
		return allow("admin")
	}
	req, err := ParseAction(module, action)
	if err != nil {
		d.fail(module, action, err)
		return deny("malformed action")
	}

	key := decisionKey{actorID: actor.ID, code: req, owner: ref.String()}
	if dec, ok := d.decisions.Get(key); ok {
		return dec
	}

	set, err := d.permissionsFor(ctx, actor)
	if err != nil {
		d.fail(module, action, err)
		return deny("rule lookup failed")
	}
	ok, reason, err := match(set, req, ref, func() (bool, error) {
		return d.owners.Check(ctx, actor.ID, ref)
	})
	if err != nil {
		d.fail(module, action, err)
		return deny(reason)
	}
	dec := Decision{Allowed: ok, Reason: reason}
	d.decisions.Add(key, dec)
	if ok {
		d.engine.observe(req.Module, OutcomeAllow)
	} else {
		d.engine.observe(req.Module, OutcomeDeny)
	}
	return dec
}

func (d *DecisionContext) currentActor(ctx context.Context) *Actor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.actorLoaded {
		return d.actor
	}
	if d.identity == nil {
		return nil
	}
	actor, err := d.identity.CurrentActor(ctx)
	if err != nil {
		d.engine.logger.Warn("authz resolve actor", slog.Any("error", err))
		return nil
	}
	d.actor = actor
	d.actorLoaded = true
	return actor
}

func (d *DecisionContext) permissionsFor(ctx context.Context, actor *Actor) (PermissionSet, error) {
	d.mu.Lock()
	set, ok := d.sets[actor.ID]
	d.mu.Unlock()
	if ok {
		return set, nil
	}

	v, err, _ := d.loads.Do(strconv.FormatInt(actor.ID, 10), func() (any, error) {
		d.mu.Lock()
		set, ok := d.sets[actor.ID]
		d.mu.Unlock()
		if ok {
			return set, nil
		}
		provider := d.engine.providerFor(actor.Source())
		if provider == nil {
			return PermissionSet{}, nil
		}
		lctx, cancel := d.engine.withTimeout(ctx)
		defer cancel()
		loaded, err := provider.PermissionsFor(lctx, actor)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.sets[actor.ID] = loaded
		d.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(PermissionSet), nil
}

func (d *DecisionContext) fail(module, action string, err error) {
	d.engine.logger.Error("authz decision failed",
		slog.String("module", module),
		slog.String("action", action),
		slog.Any("error", err),
	)
	d.engine.observe(module, OutcomeError)
}

// memoOwners caches successful code lookups for the lifetime of the context.
type memoOwners struct {
	d *DecisionContext
}

func (m memoOwners) OwnerIDByCode(ctx context.Context, code string) (int64, error) {
	m.d.mu.Lock()
	id, ok := m.d.ownerIDs[code]
	m.d.mu.Unlock()
	if ok {
		return id, nil
	}
	if m.d.engine.owners == nil {
		return 0, errNoOwnerStore
	}
	lctx, cancel := m.d.engine.withTimeout(ctx)
	defer cancel()
	id, err := m.d.engine.owners.OwnerIDByCode(lctx, code)
	if err != nil {
		return 0, err
	}
	m.d.mu.Lock()
	m.d.ownerIDs[code] = id
	m.d.mu.Unlock()
	return id, nil
}
