package card

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smallbiznis/cardlink/internal/domain"
	"github.com/smallbiznis/cardlink/internal/media"
	"github.com/smallbiznis/cardlink/internal/repository"
)

// Context stores the resolved profile and card behind a capability.
type Context struct {
	Profile   domain.Profile
	WebCard   domain.WebCard
	AvatarURL string
}

// Resolver loads profiles and their cards from repositories.
type Resolver struct {
	repo    repository.ProfileStore
	avatars media.AvatarResolver
}

// NewResolver creates a card resolver.
func NewResolver(repo repository.ProfileStore, avatars media.AvatarResolver) *Resolver {
	return &Resolver{repo: repo, avatars: avatars}
}

// Resolve loads the profile identified by identityID along with its web card. The avatar URL
// is resolved on every call.
func (r *Resolver) Resolve(ctx context.Context, identityID string) (*Context, error) {
	cleaned := strings.TrimSpace(identityID)
	if cleaned == "" {
		zap.L().Warn("card resolver received empty identity")
		return nil, fmt.Errorf("resolve card: empty identity: %w", repository.ErrNotFound)
	}

	profile, webCard, err := r.repo.LoadProfileAndCard(ctx, cleaned)
	if err != nil {
		zap.L().Error("failed to load profile", zap.String("identity_id", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve card: %w", err)
	}

	avatarURL := ""
	if r.avatars != nil {
		avatarURL, err = r.avatars.ResolveAvatarURL(ctx, profile, webCard)
		if err != nil {
			zap.L().Warn("failed to resolve avatar", zap.String("identity_id", cleaned), zap.Error(err))
			avatarURL = ""
		}
	}

	zap.L().Debug("card context resolved", zap.String("identity_id", cleaned), zap.String("webcard_id", webCard.ID))

	return &Context{
		Profile:   profile,
		WebCard:   webCard,
		AvatarURL: avatarURL,
	}, nil
}
