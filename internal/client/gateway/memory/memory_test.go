package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecotrack/internal/apperrors"
	"ecotrack/internal/auth"
	"ecotrack/internal/client/gateway"
)

// watch collects deliveries on a buffered channel.
func watch(t *testing.T, g *Gateway) <-chan *auth.Identity {
	t.Helper()
	ch := make(chan *auth.Identity, 16)
	t.Cleanup(g.OnIdentityChange(func(identity *auth.Identity) { ch <- identity }))
	return ch
}

func next(t *testing.T, ch <-chan *auth.Identity) *auth.Identity {
	t.Helper()
	select {
	case identity := <-ch:
		return identity
	case <-time.After(2 * time.Second):
		t.Fatal("no identity event")
		return nil
	}
}

func quiet(t *testing.T, ch <-chan *auth.Identity) {
	t.Helper()
	select {
	case identity := <-ch:
		t.Fatalf("unexpected event %+v", identity)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCreateAccountSignsIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := New()
	events := watch(t, g)
	assert.Nil(t, next(t, events))

	identity, err := g.CreateAccount(ctx, " x@y.com ", "Abc123!")
	require.NoError(t, err)
	assert.Equal(t, "x@y.com", identity.Email)
	assert.Empty(t, identity.DisplayName)
	assert.Empty(t, identity.PhotoURL)

	got := next(t, events)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.ID, g.CurrentIdentity().ID)

	_, err = g.CreateAccount(ctx, "X@Y.com", "Abc123!")
	assert.ErrorIs(t, err, apperrors.ErrEmailAlreadyInUse)
	_, err = g.CreateAccount(ctx, "a@b.com", "abc")
	assert.ErrorIs(t, err, apperrors.ErrWeakPassword)
	_, err = g.CreateAccount(ctx, "nope", "Abc123!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentialsFormat)
}

func TestSignIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := New()
	_, err := g.AddAccount("x@y.com", "Abc123!")
	require.NoError(t, err)
	assert.Nil(t, g.CurrentIdentity())

	_, err = g.SignIn(ctx, "x@y.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = g.SignIn(ctx, "who@y.com", "Abc123!")
	assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
	_, err = g.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentialsFormat)

	identity, err := g.SignIn(ctx, "X@y.com", "Abc123!")
	require.NoError(t, err)
	assert.Equal(t, "x@y.com", identity.Email)
}

func TestSignOutEmitsNull(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g := New()
	_, err := g.CreateAccount(ctx, "x@y.com", "Abc123!")
	require.NoError(t, err)
	events := watch(t, g)
	require.NotNil(t, next(t, events))

	require.NoError(t, g.SignOut(ctx))
	assert.Nil(t, next(t, events))
	assert.Nil(t, g.CurrentIdentity())
}

func TestUpdateProfileFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.ErrorIs(t, New().UpdateProfileFields(ctx, gateway.ProfileFields{}), apperrors.ErrNotAuthenticated)

	loud := New()
	_, err := loud.CreateAccount(ctx, "x@y.com", "Abc123!")
	require.NoError(t, err)
	events := watch(t, loud)
	next(t, events)

	require.NoError(t, loud.UpdateProfileFields(ctx, gateway.ProfileFields{DisplayName: gateway.String("Jane")}))
	assert.Equal(t, "Jane", next(t, events).DisplayName)

	silent := New(WithoutProfileEvents())
	_, err = silent.CreateAccount(ctx, "x@y.com", "Abc123!")
	require.NoError(t, err)
	events = watch(t, silent)
	next(t, events)

	require.NoError(t, silent.UpdateProfileFields(ctx, gateway.ProfileFields{PhotoURL: gateway.String("http://img/1.png")}))
	quiet(t, events)
	assert.Equal(t, "http://img/1.png", silent.CurrentIdentity().PhotoURL)
}

func TestSignInInteractive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := New().SignInInteractive(ctx, "google")
	assert.ErrorIs(t, err, apperrors.ErrProviderError)

	g := New(WithInteractive(func(_ context.Context, provider string) (*auth.Identity, error) {
		return &auth.Identity{Email: "fed@example.com", DisplayName: "Fed"}, nil
	}))
	first, err := g.SignInInteractive(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, "google", first.Provider)
	assert.Equal(t, "Fed", first.DisplayName)

	second, err := g.SignInInteractive(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	cancelled := New(WithInteractive(func(context.Context, string) (*auth.Identity, error) {
		return nil, apperrors.ErrUserCancelled
	}))
	_, err = cancelled.SignInInteractive(ctx, "google")
	assert.ErrorIs(t, err, apperrors.ErrUserCancelled)
	assert.Nil(t, cancelled.CurrentIdentity())
}

func TestSignInInteractiveDoesNotTakeOverPasswordAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g := New(WithInteractive(func(context.Context, string) (*auth.Identity, error) {
		return &auth.Identity{Email: "Owner@example.com", DisplayName: "Someone"}, nil
	}))
	_, err := g.CreateAccount(ctx, "owner@example.com", "Abc123!")
	require.NoError(t, err)
	require.NoError(t, g.SignOut(ctx))

	_, err = g.SignInInteractive(ctx, "google")
	require.ErrorIs(t, err, apperrors.ErrEmailAlreadyInUse)
	assert.Nil(t, g.CurrentIdentity())
}

func TestManualSettleAndEmit(t *testing.T) {
	t.Parallel()

	g := New(WithManualSettle())
	events := watch(t, g)
	quiet(t, events)

	g.Settle(&auth.Identity{ID: "u1"})
	assert.Equal(t, "u1", next(t, events).ID)

	g.Emit(nil)
	assert.Nil(t, next(t, events))
}

func TestFailNextAndHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	boom := errors.New("boom")
	var ops []Op
	g := New(WithHook(func(_ context.Context, op Op) error {
		ops = append(ops, op)
		return nil
	}))
	g.FailNext(OpSignOut, boom)

	assert.ErrorIs(t, g.SignOut(ctx), boom)
	assert.NoError(t, g.SignOut(ctx))
	assert.Equal(t, []Op{OpSignOut, OpSignOut}, ops)
}
