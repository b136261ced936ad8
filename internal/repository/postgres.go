package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smallbiznis/cardlink/internal/domain"
)

// Compile-time interface assertions.
var (
	_ ProfileStore = (*PostgresProfileStore)(nil)
)

const loadProfileAndCardSQL = `SELECT p.id, p.user_id, p.webcard_id, p.contact_card, COALESCE(p.avatar_media_id, ''),
       w.id, COALESCE(w.user_name, ''), w.is_multi_user, w.common_information, COALESCE(w.logo_media_id, '')
FROM profiles p
JOIN webcards w ON w.id = p.webcard_id
WHERE p.id = $1 AND p.deleted = false AND w.deleted = false`

// Querier is the subset of pgxpool.Pool used by the stores.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProfileStore implements ProfileStore with plain pgx queries.
type PostgresProfileStore struct {
	db Querier
}

func NewPostgresProfileStore(db Querier) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) LoadProfileAndCard(ctx context.Context, identityID string) (domain.Profile, domain.WebCard, error) {
	var (
		profile     domain.Profile
		card        domain.WebCard
		contactJSON []byte
		commonJSON  []byte
	)
	err := s.db.QueryRow(ctx, loadProfileAndCardSQL, identityID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.WebCardID,
		&contactJSON,
		&profile.AvatarMediaID,
		&card.ID,
		&card.UserName,
		&card.IsMultiUser,
		&commonJSON,
		&card.LogoMediaID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.WebCard{}, fmt.Errorf("load profile %s: %w", identityID, ErrNotFound)
		}
		return domain.Profile{}, domain.WebCard{}, fmt.Errorf("load profile: %w", err)
	}

	if len(contactJSON) > 0 {
		if err := json.Unmarshal(contactJSON, &profile.ContactCard); err != nil {
			return domain.Profile{}, domain.WebCard{}, fmt.Errorf("decode contact card: %w", err)
		}
	}
	if len(commonJSON) > 0 {
		if err := json.Unmarshal(commonJSON, &card.CommonInformation); err != nil {
			return domain.Profile{}, domain.WebCard{}, fmt.Errorf("decode common information: %w", err)
		}
	}
	return profile, card, nil
}
