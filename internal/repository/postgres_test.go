package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/cardlink/internal/repository"
)

func TestLoadProfileAndCard(t *testing.T) {
	db := &fakeQuerier{row: fakeRow{values: []any{
		"p1", "u1", "w1",
		[]byte(`{"firstName":"Ada","lastName":"Lovelace","emails":[{"value":"ada@example.com","selected":true}]}`),
		"m1",
		"w1", "ada", true,
		[]byte(`{"company":"Analytical Engines"}`),
		"",
	}}}
	store := repository.NewPostgresProfileStore(db)

	profile, card, err := store.LoadProfileAndCard(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, []any{"p1"}, db.args)
	require.Equal(t, "u1", profile.UserID)
	require.Equal(t, "Lovelace", profile.ContactCard.LastName)
	require.True(t, profile.ContactCard.Emails[0].Selected)
	require.Equal(t, "ada", card.UserName)
	require.True(t, card.IsMultiUser)
	require.Equal(t, "Analytical Engines", card.CommonInformation.Company)
}

func TestLoadProfileAndCardNotFound(t *testing.T) {
	store := repository.NewPostgresProfileStore(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})

	_, _, err := store.LoadProfileAndCard(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLoadProfileAndCardStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	store := repository.NewPostgresProfileStore(&fakeQuerier{row: fakeRow{err: boom}})

	_, _, err := store.LoadProfileAndCard(context.Background(), "p1")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, repository.ErrNotFound)
}

func TestNoopNonceStoreAcceptsReuse(t *testing.T) {
	var store repository.NoopNonceStore
	for i := 0; i < 2; i++ {
		ok, err := store.Claim(context.Background(), "n1", 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

type fakeQuerier struct {
	row  fakeRow
	args []any
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.args = args
	return f.row
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch target := d.(type) {
		case *string:
			*target = r.values[i].(string)
		case *bool:
			*target = r.values[i].(bool)
		case *[]byte:
			*target = r.values[i].([]byte)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}
