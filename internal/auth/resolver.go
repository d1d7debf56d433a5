package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ftsi/facsite/internal/metrics"
)

// AuthState is the resolved authentication state of one session.
//
// Session and User are always both nil or both set. Loading is true from the
// moment the session is known until its first role lookup completes; IsAdmin
// is only meaningful once Loading is false.
type AuthState struct {
	Session *SessionRef
	User    *UserRef
	IsAdmin bool
	Loading bool
}

// SessionRef is the session identity carried in an AuthState.
type SessionRef struct {
	ID        string
	ExpiresAt time.Time
}

// UserRef is the user identity carried in an AuthState.
type UserRef struct {
	ID    string
	Email string
}

// RoleResolver looks up administrator membership. Service satisfies it.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) bool
}

type eventKind int

const (
	eventSessionStarted eventKind = iota
	eventSessionEnded
)

type event struct {
	kind    eventKind
	session SessionRef
	user    UserRef
}

// Resolver tracks the AuthState of every live session.
//
// All state transitions flow through a single goroutine consuming an event
// queue, so events for one session always apply in the order they were
// submitted: a sign-out queued after a sign-in can never be overtaken by the
// sign-in's role lookup.
type Resolver struct {
	roles       RoleResolver
	collector   *metrics.Collector
	logger      *slog.Logger
	lookupLimit time.Duration

	events  chan event
	stopped chan struct{}

	mu     sync.RWMutex
	states map[string]AuthState
}

// NewResolver creates a Resolver. Run must be called before events are
// submitted.
func NewResolver(roles RoleResolver, collector *metrics.Collector, logger *slog.Logger) *Resolver {
	return &Resolver{
		roles:       roles,
		collector:   collector,
		logger:      logger,
		lookupLimit: 5 * time.Second,
		events:      make(chan event, 64),
		stopped:     make(chan struct{}),
		states:      make(map[string]AuthState),
	}
}

// Run consumes the event queue until ctx is cancelled. It is the only
// goroutine that mutates resolver state.
func (r *Resolver) Run(ctx context.Context) {
	defer close(r.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.apply(ctx, ev)
		}
	}
}

func (r *Resolver) apply(ctx context.Context, ev event) {
	switch ev.kind {
	case eventSessionStarted:
		r.setState(ev.session.ID, AuthState{
			Session: &ev.session,
			User:    &ev.user,
			Loading: true,
		})

		lookupCtx, cancel := context.WithTimeout(ctx, r.lookupLimit)
		isAdmin := r.roles.ResolveRole(lookupCtx, ev.user.ID)
		cancel()
		r.collector.RecordRoleLookup(isAdmin)

		r.setState(ev.session.ID, AuthState{
			Session: &ev.session,
			User:    &ev.user,
			IsAdmin: isAdmin,
			Loading: false,
		})

		r.logger.DebugContext(ctx, "session role resolved",
			slog.String("user_id", ev.user.ID),
			slog.Bool("is_admin", isAdmin),
		)

	case eventSessionEnded:
		r.mu.Lock()
		delete(r.states, ev.session.ID)
		r.mu.Unlock()
	}
}

func (r *Resolver) setState(sessionID string, state AuthState) {
	r.mu.Lock()
	r.states[sessionID] = state
	r.mu.Unlock()
}

// SessionStarted submits a session for role resolution. The state is
// observable as Loading until the lookup completes.
func (r *Resolver) SessionStarted(session SessionRef, user UserRef) {
	r.submit(event{kind: eventSessionStarted, session: session, user: user})
}

// SessionEnded discards the state of a closed or expired session.
func (r *Resolver) SessionEnded(sessionID string) {
	r.submit(event{kind: eventSessionEnded, session: SessionRef{ID: sessionID}})
}

func (r *Resolver) submit(ev event) {
	select {
	case r.events <- ev:
	case <-r.stopped:
	}
}

// State returns the AuthState of a session. Sessions the resolver has never
// seen return the zero state: anonymous and not loading.
func (r *Resolver) State(sessionID string) AuthState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[sessionID]
}

// Known reports whether the resolver holds state for the session.
func (r *Resolver) Known(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.states[sessionID]
	return ok
}
