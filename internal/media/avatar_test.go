package media_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/cardlink/internal/domain"
	"github.com/smallbiznis/cardlink/internal/media"
)

func TestResolveAvatarURL(t *testing.T) {
	resolver, err := media.NewCDNResolver("https://media.cardlink.test/")
	require.NoError(t, err)

	url, err := resolver.ResolveAvatarURL(context.Background(), domain.Profile{AvatarMediaID: "m1"}, domain.WebCard{})
	require.NoError(t, err)
	require.Equal(t, "https://media.cardlink.test/image/m1?w=180", url)
}

func TestResolveAvatarURLFallsBackToLogo(t *testing.T) {
	resolver, err := media.NewCDNResolver("https://media.cardlink.test")
	require.NoError(t, err)

	url, err := resolver.ResolveAvatarURL(context.Background(), domain.Profile{}, domain.WebCard{IsMultiUser: true, LogoMediaID: "logo"})
	require.NoError(t, err)
	require.Equal(t, "https://media.cardlink.test/image/logo?w=180", url)

	url, err = resolver.ResolveAvatarURL(context.Background(), domain.Profile{}, domain.WebCard{LogoMediaID: "logo"})
	require.NoError(t, err)
	require.Empty(t, url)
}

func TestNewCDNResolverRequiresAbsoluteURL(t *testing.T) {
	_, err := media.NewCDNResolver("media")
	require.Error(t, err)
}
