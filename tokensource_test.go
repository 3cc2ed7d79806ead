package jaasjwt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinter struct {
	count    atomic.Int32
	validity time.Duration
	err      error
}

func (m *fakeMinter) Issue(ctx context.Context, req TokenRequest) (*IssuedToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	n := m.count.Add(1)
	now := time.Now().Unix()
	return &IssuedToken{
		Token:  req.Room + ":" + string(rune('0'+n)),
		Claims: ClaimSet{NotBefore: now, ExpiresAt: now + int64(m.validity/time.Second)},
	}, nil
}

func TestTokenSourceCacheReuse(t *testing.T) {
	minter := &fakeMinter{validity: time.Hour}
	cache := NewTokenSourceCache(minter, time.Minute)
	ctx := context.Background()

	first, err := cache.Token(ctx, aliceRequest())
	require.NoError(t, err)
	second, err := cache.Token(ctx, aliceRequest())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, minter.count.Load())

	other := aliceRequest()
	other.Moderator = false
	_, err = cache.Token(ctx, other)
	require.NoError(t, err)
	assert.EqualValues(t, 2, minter.count.Load())
}

func TestTokenSourceCacheRemintsNearExpiry(t *testing.T) {
	// Tokens live for one minute while the early expiry window is five, so every call mints.
	minter := &fakeMinter{validity: time.Minute}
	cache := NewTokenSourceCache(minter, 0)

	_, err := cache.Token(context.Background(), aliceRequest())
	require.NoError(t, err)
	_, err = cache.Token(context.Background(), aliceRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 2, minter.count.Load())
}

func TestTokenSourceCacheIgnoresCanceledContext(t *testing.T) {
	minter := &fakeMinter{validity: time.Minute}
	cache := NewTokenSourceCache(minter, 0)

	ctx, cancel := context.WithCancel(context.Background())
	ts := cache.TokenSource(ctx, aliceRequest())
	cancel()

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)
}

func TestTokenSourceCacheError(t *testing.T) {
	expected := errors.New("no key")
	cache := NewTokenSourceCache(&fakeMinter{err: expected}, 0)

	_, err := cache.Token(context.Background(), aliceRequest())
	require.ErrorIs(t, err, expected)
}

func TestTokenSourceCacheWithIssuer(t *testing.T) {
	source := &countingSource{pem: pkcs8PEM(t, newRSAKey(t))}
	cache := NewTokenSourceCache(newTestIssuer(t, source), time.Minute)

	tok, err := cache.TokenSource(context.Background(), aliceRequest()).Token()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), tok.Expiry, 5*time.Second)
}

func TestTokenSourceCacheEvictsExpiredSources(t *testing.T) {
	minter := &fakeMinter{validity: -time.Minute}
	cache := NewTokenSourceCache(minter, time.Second)
	ctx := context.Background()

	_, err := cache.Token(ctx, aliceRequest())
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	other := aliceRequest()
	other.Room = "room43"
	_, err = cache.Token(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// A live source survives the sweep.
	minter.validity = time.Hour
	third := aliceRequest()
	third.Room = "room44"
	_, err = cache.Token(ctx, third)
	require.NoError(t, err)
	fourth := aliceRequest()
	fourth.Room = "room45"
	_, err = cache.Token(ctx, fourth)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
}
