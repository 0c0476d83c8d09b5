package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/internal/cipher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPasswordUser(t *testing.T, env *testEnv, name, password string) *core.User {
	t.Helper()

	u := &core.User{Name: name, Password: core.HashCredential(password)}
	_, err := env.users.Save(context.Background(), u)
	require.NoError(t, err)
	return u
}

func encryptFor(t *testing.T, publicKey, password string) string {
	t.Helper()

	ciphertext, err := cipher.Encrypt(publicKey, []byte(core.HashCredential(password)))
	require.NoError(t, err)
	return ciphertext
}

func TestVerifyPassword_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	want := seedPasswordUser(t, env, "alice", "secret")

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)

	got, err := env.svc.VerifyPassword(ctx, "fp1", "alice", encryptFor(t, pub, "secret"))
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestVerifyPassword_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPasswordUser(t, env, "alice", "secret")

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)
	ciphertext := encryptFor(t, pub, "secret")

	_, err = env.svc.VerifyPassword(ctx, "fp1", "alice", ciphertext)
	require.NoError(t, err)

	_, err = env.svc.VerifyPassword(ctx, "fp1", "alice", ciphertext)
	require.ErrorIs(t, err, core.ErrChallengeExpiredOrMissing)
}

func TestVerifyPassword_ChallengeExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedPasswordUser(t, env, "alice", "secret")

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)

	env.clock.Advance(30 * time.Second)

	_, err = env.svc.VerifyPassword(ctx, "fp1", "alice", encryptFor(t, pub, "secret"))
	require.ErrorIs(t, err, core.ErrChallengeExpiredOrMissing)
}

func TestVerifyPassword_Failures(t *testing.T) {
	tests := []struct {
		name     string
		fp       string
		username string
		password string
		garble   bool
		wantErr  error
	}{
		{"unknown fingerprint", "other", "alice", "secret", false, core.ErrChallengeExpiredOrMissing},
		{"wrong password", "fp1", "alice", "wrong", false, core.ErrInvalidCredentials},
		{"unknown user", "fp1", "bob", "secret", false, core.ErrUserNotFound},
		{"undecryptable", "fp1", "alice", "secret", true, core.ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			seedPasswordUser(t, env, "alice", "secret")

			pub, err := env.svc.RequestChallenge(ctx, "fp1")
			require.NoError(t, err)

			ciphertext := encryptFor(t, pub, tt.password)
			if tt.garble {
				ciphertext = "%%%not-base64"
			}

			_, err = env.svc.VerifyPassword(ctx, tt.fp, tt.username, ciphertext)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyPassword_FederatedUserHasNoPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.users.Save(ctx, &core.User{Name: "carol", GithubSubject: "7"})
	require.NoError(t, err)

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)

	ciphertext, err := cipher.Encrypt(pub, []byte(""))
	require.NoError(t, err)

	_, err = env.svc.VerifyPassword(ctx, "fp1", "carol", ciphertext)
	require.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestRequestChallenge_Fingerprint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.RequestChallenge(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.RequestChallenge(ctx, strings.Repeat("f", MaxFingerprintLength+1))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRequestChallenge_StoresPrivateKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	kp := &cipher.KeyPair{PublicKey: "pub", PrivateKey: "priv"}
	env.svc.newKeyPair = func() (*cipher.KeyPair, error) { return kp, nil }

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "pub", pub)

	stored, found, err := env.cache.Get(ctx, "login:privatekey:fp1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "priv", stored)
}

func TestRequestChallenge_KeygenFailure(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("entropy exhausted")
	env.svc.newKeyPair = func() (*cipher.KeyPair, error) { return nil, boom }

	_, err := env.svc.RequestChallenge(context.Background(), "fp1")
	require.ErrorIs(t, err, boom)
}

func TestRequestChallenge_CacheUnavailable(t *testing.T) {
	env := newTestEnvWithCache(t, &fakeClock{now: time.Unix(1_700_000_000, 0)}, failingCache{})
	env.svc.newKeyPair = func() (*cipher.KeyPair, error) { return &cipher.KeyPair{}, nil }

	_, err := env.svc.RequestChallenge(context.Background(), "fp1")
	require.ErrorIs(t, err, core.ErrCacheUnavailable)

	_, err = env.svc.VerifyPassword(context.Background(), "fp1", "alice", "x")
	require.ErrorIs(t, err, core.ErrCacheUnavailable)
}

func TestVerifyPassword_ConcurrentAttemptsShareOneChallenge(t *testing.T) {
	env := newSlowTestEnv(t)
	ctx := context.Background()
	seedPasswordUser(t, env, "alice", "secret")

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)
	ciphertext := encryptFor(t, pub, "secret")

	ok := concurrently(10, func() error {
		_, err := env.svc.VerifyPassword(ctx, "fp1", "alice", ciphertext)
		return err
	})
	assert.Equal(t, 1, ok)
}

func TestVerifyPassword_UnknownUserConsumesChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pub, err := env.svc.RequestChallenge(ctx, "fp1")
	require.NoError(t, err)

	_, err = env.svc.VerifyPassword(ctx, "fp1", "nobody", encryptFor(t, pub, ""))
	require.ErrorIs(t, err, core.ErrUserNotFound)

	_, found, err := env.cache.Get(ctx, challengeKey("fp1"))
	require.NoError(t, err)
	assert.False(t, found)
}
