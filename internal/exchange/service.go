package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
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
)

var (
	// ErrUnpublishedCard is returned when the profile's card has no public user name to link to.
	ErrUnpublishedCard = errors.New("exchange: card has no public user name")
	// ErrInvalidCapability is returned when the data to issue does not fit a capability.
	ErrInvalidCapability = errors.New("exchange: invalid capability data")
)

// Config tunes issuance and redemption.
type Config struct {
	PublicBaseURL string
	// TTLs overrides the per-kind default lifetime.
	TTLs map[capability.Kind]time.Duration
	// SingleUse rejects a second redemption of the same capability.
	SingleUse bool
}

// Service issues capabilities and redeems them.
type Service struct {
	signer   *capability.Signer
	cards    *card.Resolver
	upgrades *jwt.UpgradeIssuer
	nonces   repository.NonceStore
	sink     diagnostic.Sink
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService wires the exchange. A nil nonce store disables single-use checks.
func NewService(
	signer *capability.Signer,
	cards *card.Resolver,
	upgrades *jwt.UpgradeIssuer,
	nonces repository.NonceStore,
	sink diagnostic.Sink,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if nonces == nil {
		nonces = repository.NoopNonceStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		signer:   signer,
		cards:    cards,
		upgrades: upgrades,
		nonces:   nonces,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.Named("exchange"),
		tracer:   otel.Tracer("github.com/smallbiznis/cardlink/internal/exchange"),
		now:      time.Now,
	}
}

// Issued is a signed capability ready for distribution.
type Issued struct {
	Kind      capability.Kind `json:"kind"`
	Token     string          `json:"token"`
	URL       string          `json:"url"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// ShareBackContact is the contact a visitor shares back to a card owner.
type ShareBackContact struct {
	OwnerID string
	capability.ContactFields
	Geo *capability.Geolocation
}

// IssueQRProfileAccess signs a capability pointing at the profile's contact card.
func (s *Service) IssueQRProfileAccess(ctx context.Context, identityID string, geo *capability.Geolocation) (Issued, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.IssueQRProfileAccess")
	defer span.End()

	resolved, err := s.cards.Resolve(ctx, identityID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, fmt.Errorf("issue qr profile access: %w", err)
	}
	if err := published(resolved); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, err
	}

	payload := &capability.QRProfileAccess{
		Header:     s.header(capability.KindQRProfile),
		IdentityID: resolved.Profile.ID,
		OwnerID:    resolved.WebCard.ID,
		UserName:   resolved.WebCard.UserName,
		Geo:        geo,
		Preview:    resolved.AvatarURL,
	}
	return s.issue(ctx, span, payload, resolved.WebCard.UserName)
}

// IssueEmailSignature snapshots the profile's published contact details into a capability.
func (s *Service) IssueEmailSignature(ctx context.Context, identityID string) (Issued, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.IssueEmailSignature")
	defer span.End()

	resolved, err := s.cards.Resolve(ctx, identityID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, fmt.Errorf("issue email signature: %w", err)
	}
	if err := published(resolved); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, err
	}

	company, emails, phones := domain.PublishedContact(resolved.Profile, resolved.WebCard)
	payload := &capability.EmailSignature{
		Header:     s.header(capability.KindEmailSignature),
		IdentityID: resolved.Profile.ID,
		OwnerID:    resolved.WebCard.ID,
		UserName:   resolved.WebCard.UserName,
		ContactFields: capability.ContactFields{
			FirstName: resolved.Profile.ContactCard.FirstName,
			LastName:  resolved.Profile.ContactCard.LastName,
			Company:   company,
			Title:     resolved.Profile.ContactCard.Title,
			Emails:    emails,
			Phones:    phones,
			Avatar:    resolved.AvatarURL,
		}.Clamp(),
	}
	return s.issue(ctx, span, payload, resolved.WebCard.UserName)
}

// IssueShareBack signs a contact shared back to a card owner.
func (s *Service) IssueShareBack(ctx context.Context, contact ShareBackContact) (Issued, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.IssueShareBack")
	defer span.End()

	payload := &capability.ShareBackVCard{
		Header:        s.header(capability.KindShareBack),
		OwnerID:       strings.TrimSpace(contact.OwnerID),
		ContactFields: contact.ContactFields,
		Geo:           contact.Geo,
	}
	return s.issue(ctx, span, payload, "")
}

// ShareBackProfile signs the published contact of identityID as shared back to ownerID. The
// contact is always the caller's own profile.
func (s *Service) ShareBackProfile(ctx context.Context, identityID, ownerID string, geo *capability.Geolocation) (Issued, error) {
	resolved, err := s.cards.Resolve(ctx, identityID)
	if err != nil {
		return Issued{}, fmt.Errorf("share back profile: %w", err)
	}
	company, emails, phones := domain.PublishedContact(resolved.Profile, resolved.WebCard)
	return s.IssueShareBack(ctx, ShareBackContact{
		OwnerID: ownerID,
		ContactFields: capability.ContactFields{
			FirstName: resolved.Profile.ContactCard.FirstName,
			LastName:  resolved.Profile.ContactCard.LastName,
			Company:   company,
			Title:     resolved.Profile.ContactCard.Title,
			Emails:    emails,
			Phones:    phones,
			Avatar:    resolved.AvatarURL,
		}.Clamp(),
		Geo: geo,
	})
}

func published(resolved *card.Context) error {
	if strings.TrimSpace(resolved.WebCard.UserName) == "" {
		return fmt.Errorf("profile %s on card %s: %w", resolved.Profile.ID, resolved.WebCard.ID, ErrUnpublishedCard)
	}
	return nil
}

func (s *Service) header(kind capability.Kind) capability.Header {
	ttl := s.cfg.TTLs[kind]
	if ttl <= 0 {
		traits, _ := capability.Lookup(kind)
		ttl = traits.DefaultTTL
	}
	return capability.NewHeader(kind, s.now(), ttl)
}

func (s *Service) issue(ctx context.Context, span trace.Span, payload capability.Payload, userName string) (Issued, error) {
	meta := payload.Meta()
	span.SetAttributes(attribute.String("capability.kind", string(meta.Kind)))

	if err := capability.Validate(payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, fmt.Errorf("%w: %w", ErrInvalidCapability, err)
	}
	signature, err := s.signer.Sign(payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, fmt.Errorf("sign capability: %w", err)
	}
	token, err := capability.EncodeForTransport(payload, signature)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, fmt.Errorf("encode capability: %w", err)
	}
	link, err := s.link(meta.Kind, userName, token)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Issued{}, err
	}

	issuedCounter.WithLabelValues(string(meta.Kind)).Inc()
	s.logger.Debug("capability issued",
		zap.String("kind", string(meta.Kind)),
		zap.String("nonce", meta.Nonce),
		zap.Int64("exp", meta.ExpiresAt),
	)

	return Issued{
		Kind:      meta.Kind,
		Token:     token,
		URL:       link,
		ExpiresAt: meta.ExpiresTime(),
	}, nil
}

// link builds the public URL a capability is distributed under.
func (s *Service) link(kind capability.Kind, userName, token string) (string, error) {
	base, err := url.Parse(s.cfg.PublicBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse public base url: %w", err)
	}
	traits, _ := capability.Lookup(kind)

	var u *url.URL
	switch kind {
	case capability.KindQRProfile:
		u = base.JoinPath(userName)
	case capability.KindEmailSignature:
		u = base.JoinPath(userName, "emailsignature")
	default:
		u = base.JoinPath("share")
	}
	// The token is already query-safe.
	u.RawQuery = traits.QueryParam + "=" + token
	return u.String(), nil
}
