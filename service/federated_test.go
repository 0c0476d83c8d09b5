package service

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/webnote/adapters/cache"
	"github.com/layer-3/webnote/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOIDC_Handshake(t *testing.T) {
	idp := &fakeOIDC{identity: &core.ExternalIdentity{
		Provider: core.PrincipalOIDC,
		Subject:  "sub-1",
		Name:     "alice",
		Email:    "alice@example.com",
	}}
	env := newTestEnv(t, WithOIDC(idp))
	ctx := context.Background()

	hs, err := env.svc.BeginOIDC(ctx)
	require.NoError(t, err)
	assert.Contains(t, hs.RedirectURL, hs.SessionID)

	nonce, found, err := env.svc.GetNonce(ctx, hs.SessionID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, idp.nonces[hs.SessionID], nonce)

	idp.identity.Nonce = nonce
	u, err := env.svc.CompleteOIDC(ctx, hs.SessionID, hs.SessionID, "code")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", u.OIDCSubject)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)

	// The nonce is single use
	_, err = env.svc.CompleteOIDC(ctx, hs.SessionID, hs.SessionID, "code")
	require.ErrorIs(t, err, core.ErrNonceMismatch)
}

func TestOIDC_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(idp *fakeOIDC, hs *Handshake, clock *fakeClock) (sid, state string)
		wantErr error
	}{
		{
			name: "nonce mismatch",
			prepare: func(idp *fakeOIDC, hs *Handshake, _ *fakeClock) (string, string) {
				idp.identity.Nonce = "forged"
				return hs.SessionID, hs.SessionID
			},
			wantErr: core.ErrNonceMismatch,
		},
		{
			name: "nonce expired",
			prepare: func(idp *fakeOIDC, hs *Handshake, clock *fakeClock) (string, string) {
				idp.identity.Nonce = idp.nonces[hs.SessionID]
				clock.Advance(10 * time.Second)
				return hs.SessionID, hs.SessionID
			},
			wantErr: core.ErrNonceMismatch,
		},
		{
			name: "state mismatch",
			prepare: func(idp *fakeOIDC, hs *Handshake, _ *fakeClock) (string, string) {
				idp.identity.Nonce = idp.nonces[hs.SessionID]
				return hs.SessionID, "other-state"
			},
			wantErr: core.ErrStateMismatch,
		},
		{
			name: "missing session",
			prepare: func(idp *fakeOIDC, hs *Handshake, _ *fakeClock) (string, string) {
				return "", ""
			},
			wantErr: core.ErrStateMismatch,
		},
		{
			name: "exchange failure",
			prepare: func(idp *fakeOIDC, hs *Handshake, _ *fakeClock) (string, string) {
				idp.err = core.ErrExternalIdentityExchangeFailed
				return hs.SessionID, hs.SessionID
			},
			wantErr: core.ErrExternalIdentityExchangeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := &fakeOIDC{identity: &core.ExternalIdentity{Provider: core.PrincipalOIDC, Subject: "sub-1"}}
			env := newTestEnv(t, WithOIDC(idp))
			ctx := context.Background()

			hs, err := env.svc.BeginOIDC(ctx)
			require.NoError(t, err)

			sid, state := tt.prepare(idp, hs, env.clock)
			_, err = env.svc.CompleteOIDC(ctx, sid, state, "code")
			require.ErrorIs(t, err, tt.wantErr)

			_, err = env.users.GetByExternalSubject(ctx, core.PrincipalOIDC, "sub-1")
			require.ErrorIs(t, err, core.ErrUserNotFound)
		})
	}
}

// unstableCache fails every lookup once broken is set
type unstableCache struct {
	*cache.MemoryCache
	broken bool
}

func (c *unstableCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.broken {
		return "", false, core.ErrCacheUnavailable
	}
	return c.MemoryCache.Get(ctx, key)
}

func (c *unstableCache) Delete(ctx context.Context, key string) (bool, error) {
	if c.broken {
		return false, core.ErrCacheUnavailable
	}
	return c.MemoryCache.Delete(ctx, key)
}

func TestConsumeNonce_FailurePolicy(t *testing.T) {
	for _, failOpen := range []bool{false, true} {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		mem, err := cache.NewMemoryCache(cache.MemoryConfig{Now: clock.Now})
		require.NoError(t, err)
		c := &unstableCache{MemoryCache: mem}

		env := newTestEnvWithCache(t, clock, c)
		env.svc.cfg.NonceFailOpen = failOpen
		c.broken = true

		err = env.svc.consumeNonce(context.Background(), "sid", "nonce")
		if failOpen {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, core.ErrCacheUnavailable)
		}
	}
}

func TestGithub_CreateThenUpdate(t *testing.T) {
	gh := &fakeGithub{identity: &core.ExternalIdentity{Provider: core.PrincipalGithub, Subject: "123", Name: "alice"}}
	env := newTestEnv(t, WithGithub(gh))
	ctx := context.Background()

	hs, err := env.svc.BeginGitHub(ctx)
	require.NoError(t, err)
	first, err := env.svc.CompleteGitHub(ctx, hs.SessionID, hs.SessionID, "code")
	require.NoError(t, err)
	assert.Equal(t, "123", first.GithubSubject)
	assert.Equal(t, "alice", first.Name)

	gh.identity.Name = "alice-renamed"
	hs, err = env.svc.BeginGitHub(ctx)
	require.NoError(t, err)
	second, err := env.svc.CompleteGitHub(ctx, hs.SessionID, hs.SessionID, "code")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	stored, err := env.users.GetByExternalSubject(ctx, core.PrincipalGithub, "123")
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", stored.Name)
	assert.Equal(t, "alice-renamed", stored.GithubName)
}

func TestGithub_StateIsSingleUse(t *testing.T) {
	gh := &fakeGithub{identity: &core.ExternalIdentity{Provider: core.PrincipalGithub, Subject: "123", Name: "alice"}}
	env := newTestEnv(t, WithGithub(gh))
	ctx := context.Background()

	hs, err := env.svc.BeginGitHub(ctx)
	require.NoError(t, err)

	_, err = env.svc.CompleteGitHub(ctx, hs.SessionID, hs.SessionID, "code")
	require.NoError(t, err)

	_, err = env.svc.CompleteGitHub(ctx, hs.SessionID, hs.SessionID, "code")
	require.ErrorIs(t, err, core.ErrNonceMismatch)
}

func TestUpsert_KeepsOtherProviderLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := &core.User{Name: "dave", OIDCSubject: "sub-9", GithubSubject: "9"}
	_, err := env.users.Save(ctx, u)
	require.NoError(t, err)

	got, err := env.svc.upsertExternal(ctx, core.ExternalIdentity{Provider: core.PrincipalGithub, Subject: "9", Name: "dave-gh"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "sub-9", got.OIDCSubject)

	_, err = env.svc.upsertExternal(ctx, core.ExternalIdentity{Provider: core.PrincipalGithub})
	require.ErrorIs(t, err, core.ErrExternalIdentityExchangeFailed)
}

func TestProvidersDisabled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.BeginOIDC(ctx)
	require.ErrorIs(t, err, core.ErrProviderDisabled)
	_, err = env.svc.CompleteOIDC(ctx, "a", "a", "code")
	require.ErrorIs(t, err, core.ErrProviderDisabled)
	_, err = env.svc.BeginGitHub(ctx)
	require.ErrorIs(t, err, core.ErrProviderDisabled)
	_, err = env.svc.CompleteGitHub(ctx, "a", "a", "code")
	require.ErrorIs(t, err, core.ErrProviderDisabled)
	_, err = env.svc.WalletChallenge(ctx, "0xabc")
	require.ErrorIs(t, err, core.ErrProviderDisabled)
	_, err = env.svc.VerifyWallet(ctx, "0xabc", "sig")
	require.ErrorIs(t, err, core.ErrProviderDisabled)
}

func TestGithub_StateOutlivesNonceTTL(t *testing.T) {
	gh := &fakeGithub{identity: &core.ExternalIdentity{Provider: core.PrincipalGithub, Subject: "123", Name: "alice"}}
	env := newTestEnv(t, WithGithub(gh))
	ctx := context.Background()

	hs, err := env.svc.BeginGitHub(ctx)
	require.NoError(t, err)

	// a user reading the consent screen
	env.clock.Advance(2 * time.Minute)
	_, err = env.svc.CompleteGitHub(ctx, hs.SessionID, hs.SessionID, "code")
	require.NoError(t, err)

	hs, err = env.svc.BeginGitHub(ctx)
	require.NoError(t, err)
	env.clock.Advance(DefaultStateTTL)
	_, err = env.svc.CompleteGitHub(ctx, hs.SessionID, hs.SessionID, "code")
	require.ErrorIs(t, err, core.ErrNonceMismatch)
}

func TestConsumeNonce_ConcurrentCallbacks(t *testing.T) {
	env := newSlowTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.CreateNonce(ctx, "sid", "nonce"))

	ok := concurrently(10, func() error {
		return env.svc.consumeNonce(ctx, "sid", "nonce")
	})
	assert.Equal(t, 1, ok)
}
