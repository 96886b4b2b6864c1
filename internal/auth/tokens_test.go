package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueAndRotate(t *testing.T) {
	iss := &Issuer{Secret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour, Store: NewMemoryRefreshStore()}
	ctx := context.Background()

	pair, err := iss.Issue(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	uid, err := ParseJWT(pair.AccessToken, "s")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	uid, next, err := iss.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// refresh tokens are single use
	_, _, err = iss.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = iss.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryRefreshStore_Expiry(t *testing.T) {
	now := time.Unix(1_000, 0)
	st := NewMemoryRefreshStore()
	st.now = func() time.Time { return now }

	require.NoError(t, st.SaveRefreshToken(context.Background(), "tok", "u1", time.Minute))
	now = now.Add(2 * time.Minute)

	_, err := st.ConsumeRefreshToken(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
