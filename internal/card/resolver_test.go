package card_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/cardlink/internal/card"
	"github.com/smallbiznis/cardlink/internal/domain"
	"github.com/smallbiznis/cardlink/internal/repository"
)

func TestResolverResolve(t *testing.T) {
	resolver := card.NewResolver(&mockProfileStore{}, &mockAvatars{url: "https://cdn/avatar.png"})

	ctx, err := resolver.Resolve(context.Background(), " p1 ")
	require.NoError(t, err)
	require.Equal(t, "p1", ctx.Profile.ID)
	require.Equal(t, "w1", ctx.WebCard.ID)
	require.Equal(t, "ada", ctx.WebCard.UserName)
	require.Equal(t, "https://cdn/avatar.png", ctx.AvatarURL)
}

func TestResolverNotFound(t *testing.T) {
	resolver := card.NewResolver(&mockProfileStore{}, nil)

	_, err := resolver.Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = resolver.Resolve(context.Background(), "  ")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResolverToleratesAvatarFailure(t *testing.T) {
	resolver := card.NewResolver(&mockProfileStore{}, &mockAvatars{err: errors.New("cdn down")})

	ctx, err := resolver.Resolve(context.Background(), "p1")
	require.NoError(t, err)
	require.Empty(t, ctx.AvatarURL)
}

type mockProfileStore struct{}

func (m *mockProfileStore) LoadProfileAndCard(ctx context.Context, identityID string) (domain.Profile, domain.WebCard, error) {
	if identityID != "p1" {
		return domain.Profile{}, domain.WebCard{}, fmt.Errorf("load profile %s: %w", identityID, repository.ErrNotFound)
	}
	return domain.Profile{ID: "p1", UserID: "u1", WebCardID: "w1", ContactCard: domain.ContactCard{FirstName: "Ada", LastName: "Lovelace"}},
		domain.WebCard{ID: "w1", UserName: "ada"}, nil
}

type mockAvatars struct {
	url string
	err error
}

func (m *mockAvatars) ResolveAvatarURL(ctx context.Context, profile domain.Profile, card domain.WebCard) (string, error) {
	return m.url, m.err
}
