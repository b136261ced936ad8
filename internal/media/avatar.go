package media

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/smallbiznis/cardlink/internal/domain"
)

// AvatarWidth is the rendition width requested for contact avatars.
const AvatarWidth = 180

// AvatarResolver turns a profile's avatar media into a public URL.
type AvatarResolver interface {
	ResolveAvatarURL(ctx context.Context, profile domain.Profile, card domain.WebCard) (string, error)
}

// CDNResolver builds avatar URLs on the media CDN.
type CDNResolver struct {
	base *url.URL
}

var _ AvatarResolver = (*CDNResolver)(nil)

// NewCDNResolver parses the CDN base URL.
func NewCDNResolver(baseURL string) (*CDNResolver, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse media base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse media base url: %q is not absolute", baseURL)
	}
	return &CDNResolver{base: base}, nil
}

// ResolveAvatarURL returns "" when the profile has no avatar. Multi-user cards fall back to
// the card logo.
func (r *CDNResolver) ResolveAvatarURL(_ context.Context, profile domain.Profile, card domain.WebCard) (string, error) {
	mediaID := profile.AvatarMediaID
	if mediaID == "" && card.IsMultiUser {
		mediaID = card.LogoMediaID
	}
	if mediaID == "" {
		return "", nil
	}

	u := r.base.JoinPath("image", mediaID)
	q := u.Query()
	q.Set("w", strconv.Itoa(AvatarWidth))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
