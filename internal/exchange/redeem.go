package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/cardlink/internal/capability"
	"github.com/smallbiznis/cardlink/internal/card"
	"github.com/smallbiznis/cardlink/internal/diagnostic"
	"github.com/smallbiznis/cardlink/internal/domain"
	"github.com/smallbiznis/cardlink/internal/jwt"
	"github.com/smallbiznis/cardlink/internal/repository"
	"github.com/smallbiznis/cardlink/internal/vcard"
)

// RejectedError is returned for any redemption refused before the kind action runs.
type RejectedError struct {
	Kind   capability.Kind
	Reason diagnostic.Reason
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capability rejected: %s", e.Reason)
	}
	return fmt.Sprintf("capability rejected: %s: %v", e.Reason, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// ContactView is the contact card returned to a redeeming client. AvatarURL is resolved live
// at redemption time. Every other field is the last-known-good snapshot taken from the
// verified payload or from the profile load.
type ContactView struct {
	ProfileID   string                  `json:"profileId"`
	WebCardID   string                  `json:"webCardId"`
	UserName    string                  `json:"userName,omitempty"`
	FirstName   string                  `json:"firstName,omitempty"`
	LastName    string                  `json:"lastName,omitempty"`
	DisplayName string                  `json:"displayName"`
	Company     string                  `json:"company,omitempty"`
	Title       string                  `json:"title,omitempty"`
	Emails      []string                `json:"emails,omitempty"`
	Phones      []string                `json:"phones,omitempty"`
	AvatarURL   string                  `json:"avatarUrl,omitempty"`
	Geo         *capability.Geolocation `json:"geo,omitempty"`
}

// Redemption is the outcome of a valid capability.
type Redemption struct {
	Kind capability.Kind

	// Set for kinds that upgrade to a session.
	Contact   *ContactView
	ProfileID string
	Token     string
	ExpiresIn time.Duration

	// Set for share-back capabilities.
	VCard    []byte
	Filename string
}

// Redeem decodes and verifies a transport-encoded capability presented at the endpoint for kind.
func (s *Service) Redeem(ctx context.Context, kind capability.Kind, raw string) (*Redemption, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.Redeem", trace.WithAttributes(attribute.String("capability.kind", string(kind))))
	defer span.End()

	payload, signature, err := capability.DecodeFromTransport(raw)
	if err != nil {
		return nil, s.reject(ctx, span, kind, diagnostic.ReasonMalformed, raw, err)
	}
	return s.redeem(ctx, span, kind, payload, signature, raw)
}

// RedeemParts verifies a capability submitted as its canonical payload and signature. The
// client salt is never trusted; the salt is always recomputed from the payload.
func (s *Service) RedeemParts(ctx context.Context, data, signature, clientSalt string) (*Redemption, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.RedeemParts")
	defer span.End()

	raw := data + "~" + signature
	payload, err := capability.DecodePayload(data)
	if err != nil {
		return nil, s.reject(ctx, span, "", diagnostic.ReasonMalformed, raw, err)
	}
	if signature == "" {
		return nil, s.reject(ctx, span, payload.Meta().Kind, diagnostic.ReasonMalformed, raw, errors.New("missing signature"))
	}
	kind := payload.Meta().Kind
	span.SetAttributes(attribute.String("capability.kind", string(kind)))
	if traits, _ := capability.Lookup(kind); !traits.Upgrades {
		return nil, s.reject(ctx, span, kind, diagnostic.ReasonKindMismatch, raw, fmt.Errorf("kind %s cannot be redeemed here", kind))
	}
	if clientSalt != "" && clientSalt != capability.DeriveSalt(payload) {
		s.logger.Debug("ignoring mismatched client salt", zap.String("kind", string(kind)))
	}
	return s.redeem(ctx, span, kind, payload, signature, raw)
}

func (s *Service) redeem(ctx context.Context, span trace.Span, kind capability.Kind, payload capability.Payload, signature, raw string) (*Redemption, error) {
	meta := payload.Meta()
	if meta.Kind != kind {
		return nil, s.reject(ctx, span, kind, diagnostic.ReasonKindMismatch, raw, fmt.Errorf("payload kind %s", meta.Kind))
	}
	if !s.signer.Verify(payload, signature) {
		return nil, s.reject(ctx, span, kind, diagnostic.ReasonInvalidSignature, raw, capability.ErrInvalidSignature)
	}
	now := s.now()
	if meta.Expired(now) {
		return nil, s.reject(ctx, span, kind, diagnostic.ReasonExpired, raw, capability.ErrExpiredCapability)
	}

	claimed := false
	if s.cfg.SingleUse {
		ok, err := s.nonces.Claim(ctx, meta.Nonce, meta.ExpiresTime().Sub(now))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			redeemedCounter.WithLabelValues(string(kind), "error").Inc()
			return nil, fmt.Errorf("claim nonce: %w", err)
		}
		if !ok {
			return nil, s.reject(ctx, span, kind, diagnostic.ReasonReplayed, raw, errors.New("nonce already redeemed"))
		}
		claimed = true
	}

	redemption, err := s.act(ctx, payload)
	if err != nil {
		if claimed {
			if releaseErr := s.nonces.Release(ctx, meta.Nonce); releaseErr != nil {
				s.logger.Warn("failed to release nonce", zap.Error(releaseErr))
			}
		}
		span.SetStatus(codes.Error, err.Error())
		outcome := "error"
		if errors.Is(err, repository.ErrNotFound) {
			outcome = "not_found"
		}
		redeemedCounter.WithLabelValues(string(kind), outcome).Inc()
		return nil, err
	}

	redeemedCounter.WithLabelValues(string(kind), "valid").Inc()
	return redemption, nil
}

func (s *Service) act(ctx context.Context, payload capability.Payload) (*Redemption, error) {
	switch p := payload.(type) {
	case *capability.QRProfileAccess:
		resolved, err := s.resolveOwned(ctx, p.IdentityID, p.OwnerID)
		if err != nil {
			return nil, err
		}
		company, emails, phones := domain.PublishedContact(resolved.Profile, resolved.WebCard)
		view := &ContactView{
			ProfileID:   resolved.Profile.ID,
			WebCardID:   resolved.WebCard.ID,
			UserName:    resolved.WebCard.UserName,
			FirstName:   resolved.Profile.ContactCard.FirstName,
			LastName:    resolved.Profile.ContactCard.LastName,
			DisplayName: resolved.Profile.ContactCard.DisplayName(),
			Company:     company,
			Title:       resolved.Profile.ContactCard.Title,
			Emails:      emails,
			Phones:      phones,
			AvatarURL:   resolved.AvatarURL,
			Geo:         p.Geo,
		}
		return s.upgrade(capability.KindQRProfile, view)

	case *capability.EmailSignature:
		resolved, err := s.resolveOwned(ctx, p.IdentityID, p.OwnerID)
		if err != nil {
			return nil, err
		}
		view := &ContactView{
			ProfileID:   resolved.Profile.ID,
			WebCardID:   resolved.WebCard.ID,
			UserName:    p.UserName,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DisplayName: domain.ContactCard{FirstName: p.FirstName, LastName: p.LastName}.DisplayName(),
			Company:     p.Company,
			Title:       p.Title,
			Emails:      p.Emails,
			Phones:      p.Phones,
			AvatarURL:   resolved.AvatarURL,
		}
		return s.upgrade(capability.KindEmailSignature, view)

	case *capability.ShareBackVCard:
		contact := vcard.Contact{
			UID:       p.Nonce,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Company:   p.Company,
			Title:     p.Title,
			Emails:    p.Emails,
			Phones:    p.Phones,
			AvatarURL: p.Avatar,
		}
		if p.Geo != nil {
			contact.Lat, contact.Lng = p.Geo.Lat, p.Geo.Lng
			contact.Place = place(p.Geo)
		}
		raw, err := vcard.Build(contact)
		if err != nil {
			return nil, fmt.Errorf("build vcard: %w", err)
		}
		return &Redemption{
			Kind:     capability.KindShareBack,
			VCard:    raw,
			Filename: vcard.Filename(p.FirstName, p.LastName),
		}, nil

	default:
		return nil, fmt.Errorf("redeem: unsupported payload %T", payload)
	}
}

// resolveOwned loads the profile and checks it still belongs to the card the capability names.
func (s *Service) resolveOwned(ctx context.Context, identityID, ownerID string) (*card.Context, error) {
	resolved, err := s.cards.Resolve(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if resolved.WebCard.ID != ownerID {
		return nil, fmt.Errorf("profile %s moved off card %s: %w", identityID, ownerID, repository.ErrNotFound)
	}
	return resolved, nil
}

func (s *Service) upgrade(kind capability.Kind, view *ContactView) (*Redemption, error) {
	claims := jwt.UpgradeClaims{
		ProfileID: view.ProfileID,
		WebCardID: view.WebCardID,
		UserName:  view.UserName,
		FirstName: view.FirstName,
		LastName:  view.LastName,
		Company:   view.Company,
		Title:     view.Title,
		AvatarURL: view.AvatarURL,
		Kind:      string(kind),
	}
	if view.Geo != nil {
		claims.Geo = &jwt.Geo{
			Lat:       view.Geo.Lat,
			Lng:       view.Geo.Lng,
			City:      view.Geo.City,
			Subregion: view.Geo.Subregion,
			Region:    view.Geo.Region,
			Country:   view.Geo.Country,
		}
	}
	token, err := s.upgrades.Issue(claims)
	if err != nil {
		return nil, fmt.Errorf("issue upgrade token: %w", err)
	}
	return &Redemption{
		Kind:      kind,
		Contact:   view,
		ProfileID: view.ProfileID,
		Token:     token,
		ExpiresIn: s.upgrades.TTL(),
	}, nil
}

// reject reports exactly one diagnostic event and returns the typed rejection.
func (s *Service) reject(ctx context.Context, span trace.Span, kind capability.Kind, reason diagnostic.Reason, raw string, cause error) error {
	span.AddEvent("capability rejected", trace.WithAttributes(attribute.String("reason", string(reason))))
	span.SetStatus(codes.Error, string(reason))
	redeemedCounter.WithLabelValues(string(kind), string(reason)).Inc()

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	if s.sink != nil {
		s.sink.Report(ctx, diagnostic.Event{
			Kind:       string(kind),
			Reason:     reason,
			Raw:        raw,
			Detail:     detail,
			RemoteAddr: diagnostic.RemoteAddrFrom(ctx),
		})
	}
	return &RejectedError{Kind: kind, Reason: reason, Err: cause}
}

func place(geo *capability.Geolocation) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{geo.City, geo.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + ", " + parts[1]
	}
}
