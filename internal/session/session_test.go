package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/cardlink/internal/seal"
	"github.com/smallbiznis/cardlink/internal/session"
)

const (
	accessSecret  = "access-secret-0123456789abcdefghijkl"
	refreshSecret = "refresh-secret-0123456789abcdefghijk"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(accessSecret, refreshSecret, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	m := newManager(t)

	pair, err := m.Issue("u1", "p1")
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := m.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.Claims{UserID: "u1", ProfileID: "p1"}, claims)

	_, err = m.Verify(pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestRefreshRotatesPair(t *testing.T) {
	m := newManager(t)
	pair, err := m.Issue("u1", "p1")
	require.NoError(t, err)

	rotated, err := m.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	claims, err := m.Verify(rotated.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "p1", claims.ProfileID)

	_, err = m.Refresh(pair.AccessToken)
	require.ErrorIs(t, err, session.ErrInvalidToken)
}

func TestVerifyRejectsUnexpectedShape(t *testing.T) {
	m := newManager(t)

	cases := map[string]any{
		"extra field":  map[string]any{"userId": "u1", "profileId": "p1", "admin": true},
		"non string":   map[string]any{"userId": 42, "profileId": "p1"},
		"empty ids":    map[string]any{"userId": "", "profileId": ""},
		"not a object": []string{"u1", "p1"},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := seal.Seal(data, accessSecret, time.Minute)
			require.NoError(t, err)

			_, err = m.Verify(token)
			require.ErrorIs(t, err, session.ErrInvalidToken)
		})
	}
}

func TestVerifySoft(t *testing.T) {
	m := newManager(t)
	pair, err := m.Issue("u1", "p1")
	require.NoError(t, err)

	claims, ok := m.VerifySoft(pair.AccessToken)
	require.True(t, ok)
	require.Equal(t, "u1", claims.UserID)

	_, ok = m.VerifySoft("garbage")
	require.False(t, ok)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := session.NewManager(accessSecret, accessSecret, time.Minute, time.Hour)
	require.Error(t, err)

	_, err = session.NewManager(accessSecret, refreshSecret, time.Hour, time.Hour)
	require.Error(t, err)

	_, err = session.NewManager("short", refreshSecret, time.Minute, time.Hour)
	require.ErrorIs(t, err, seal.ErrPasswordTooShort)
}

func TestIssueRequiresIdentifiers(t *testing.T) {
	m := newManager(t)
	_, err := m.Issue("", "p1")
	require.ErrorIs(t, err, session.ErrInvalidToken)
}
