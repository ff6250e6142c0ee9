// Package sessionstore holds the client's single view of who is signed
// in. The snapshot is written only by the gateway's change callback (and
// the refresh after a profile edit); mutators report results but never
// write it themselves.
package sessionstore

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/auth/policy"
	"ecotrack/internal/client/gateway"
	"ecotrack/internal/logger"
)

// Snapshot is the session state consumers render from. Loading is true
// only until the gateway's first callback.
type Snapshot struct {
	Identity *auth.Identity
	Loading  bool
}

// SignedIn reports whether the snapshot names an identity.
func (s Snapshot) SignedIn() bool {
	return !s.Loading && s.Identity != nil
}

type op string

const (
	opRegister      op = "register"
	opLogin         op = "login"
	opFederated     op = "federated_login"
	opLogout        op = "logout"
	opUpdateProfile op = "update_profile"
)

type Store struct {
	gw gateway.Gateway

	mu        sync.Mutex
	snap      Snapshot
	events    uint64 // gateway callbacks applied so far
	watchers  map[uint64]chan Snapshot
	nextWatch uint64
	inflight  map[op]bool
	closed    bool
	settled   chan struct{}

	unsubscribe func()
	closeOnce   sync.Once
}

// New subscribes to gw for the lifetime of the store. Call Close to
// release the subscription.
func New(gw gateway.Gateway) *Store {
	s := &Store{
		gw:       gw,
		snap:     Snapshot{Loading: true},
		watchers: make(map[uint64]chan Snapshot),
		inflight: make(map[op]bool),
		settled:  make(chan struct{}),
	}
	s.unsubscribe = gw.OnIdentityChange(s.apply)
	return s
}

// Close releases the gateway subscription and closes every watch channel.
// It is safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, ch := range s.watchers {
			close(ch)
			delete(s.watchers, id)
		}
		s.mu.Unlock()
		s.unsubscribe()
	})
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Watch returns a channel that always holds the latest snapshot. A reader
// that falls behind skips stale snapshots. The channel starts with the
// current snapshot and is closed by cancel or Close.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	ch <- s.copyLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.watchers[id]; ok {
			close(c)
			delete(s.watchers, id)
		}
	}
}

// Ready blocks until the gateway has reported its initial state.
func (s *Store) Ready(ctx context.Context) error {
	select {
	case <-s.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register creates an account. The new identity has no display name or
// photo; completing the profile is a separate UpdateProfile call.
func (s *Store) Register(ctx context.Context, email, password string) (*auth.Identity, error) {
	email = policy.NormalizeEmail(email)
	if err := policy.ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperrors.ErrInvalidCredentialsFormat
	}

	release, err := s.begin(opRegister)
	if err != nil {
		return nil, err
	}
	defer release()

	identity, err := s.gw.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, s.fail(opRegister, err)
	}
	return identity, nil
}

// UpdateProfile sets the display metadata of the signed-in identity and
// refreshes the snapshot from the gateway, whether or not the gateway
// emits a change event for it.
func (s *Store) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	current := s.Snapshot().Identity
	if current == nil {
		return apperrors.ErrNotAuthenticated
	}

	displayName = strings.TrimSpace(displayName)
	photoURL = strings.TrimSpace(photoURL)
	if err := policy.ValidatePhotoURL(photoURL); err != nil {
		return err
	}

	release, err := s.begin(opUpdateProfile)
	if err != nil {
		return err
	}
	defer release()

	fields := gateway.ProfileFields{DisplayName: &displayName, PhotoURL: &photoURL}
	if err := s.gw.UpdateProfileFields(ctx, fields); err != nil {
		return s.fail(opUpdateProfile, err)
	}

	s.refresh(current)
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) (*auth.Identity, error) {
	email = policy.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentialsFormat
	}

	release, err := s.begin(opLogin)
	if err != nil {
		return nil, err
	}
	defer release()

	identity, err := s.gw.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.fail(opLogin, err)
	}
	return identity, nil
}

// FederatedLogin runs the provider's interactive sign-in. Abandoning it
// through ctx reports USER_CANCELLED.
func (s *Store) FederatedLogin(ctx context.Context, provider string) (*auth.Identity, error) {
	release, err := s.begin(opFederated)
	if err != nil {
		return nil, err
	}
	defer release()

	identity, err := s.gw.SignInInteractive(ctx, provider)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnknown &&
			(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			err = apperrors.Wrap(apperrors.CodeUserCancelled, "sign-in cancelled", err)
		}
		return nil, s.fail(opFederated, err)
	}
	return identity, nil
}

// Logout ends the gateway session. Signing out while signed out succeeds
// without contacting the gateway.
func (s *Store) Logout(ctx context.Context) error {
	if snap := s.Snapshot(); !snap.Loading && snap.Identity == nil {
		return nil
	}

	release, err := s.begin(opLogout)
	if err != nil {
		return err
	}
	defer release()

	if err := s.gw.SignOut(ctx); err != nil {
		return s.fail(opLogout, err)
	}
	return nil
}

// apply is the gateway callback. Each event replaces the snapshot.
func (s *Store) apply(identity *auth.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	wasLoading := s.snap.Loading
	s.events++
	s.snap = Snapshot{Identity: identity.Clone()}
	if wasLoading {
		close(s.settled)
	}
	s.broadcastLocked()

	fields := map[string]any{"signed_in": identity != nil}
	if identity != nil {
		fields["user_id"] = identity.ID
	}
	logger.Info("session snapshot changed", fields)
}

// refresh pulls the gateway's current identity after a profile edit. It
// only applies while the snapshot still names the edited account, and is
// dropped if a gateway event landed while the identity was being read.
func (s *Store) refresh(edited *auth.Identity) {
	s.mu.Lock()
	seen := s.events
	s.mu.Unlock()

	fresh := s.gw.CurrentIdentity().Clone()
	if fresh == nil || !fresh.SameAccount(edited) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.events != seen || !fresh.SameAccount(s.snap.Identity) {
		return
	}
	s.snap = Snapshot{Identity: fresh}
	s.broadcastLocked()
}

func (s *Store) broadcastLocked() {
	snap := s.copyLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Store) copyLocked() Snapshot {
	return Snapshot{Identity: s.snap.Identity.Clone(), Loading: s.snap.Loading}
}

func (s *Store) begin(o op) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[o] {
		return nil, apperrors.ErrOperationPending
	}
	s.inflight[o] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inflight, o)
	}, nil
}

// fail classifies err. Untyped transport failures become NETWORK and
// anything else the gateway could not name becomes PROVIDER_ERROR.
func (s *Store) fail(o op, err error) error {
	if apperrors.CodeOf(err) == apperrors.CodeUnknown {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.Wrap(apperrors.CodeNetwork, "identity service unreachable", err)
		} else {
			err = apperrors.Wrap(apperrors.CodeProviderError, "identity service error", err)
		}
	}
	logger.Warn("session operation failed", map[string]any{
		"operation": string(o),
		"code":      string(apperrors.CodeOf(err)),
	})
	return err
}
