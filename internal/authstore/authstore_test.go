package authstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/flodgatt/flodgatt/internal/circuitbreaker"
	"github.com/flodgatt/flodgatt/internal/id"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	logger := zaptest.NewLogger(t)
	return &Store{
		db:     sqlx.NewDb(rawDB, "postgres"),
		cb:     circuitbreaker.NewDatabaseWrapper(rawDB, logger),
		logger: logger,
	}, mock
}

func TestResolveToken_success(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT resource_owner_id FROM oauth_access_tokens").
		WithArgs("tok-123").
		WillReturnRows(sqlmock.NewRows([]string{"resource_owner_id"}).AddRow(int64(42)))

	mock.ExpectQuery("SELECT target_account_id FROM blocks WHERE account_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"target_account_id"}).AddRow(int64(7)))

	mock.ExpectQuery("SELECT account_id FROM blocks WHERE target_account_id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}))

	mock.ExpectQuery("SELECT domain FROM account_domain_blocks").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"domain"}).AddRow("bad.example"))

	user, err := store.ResolveToken(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, id.Id(42), user.ID)
	_, blocked := user.Blocks.BlockedUsers[7]
	assert.True(t, blocked)
	_, domainBlocked := user.Blocks.BlockedDomains["bad.example"]
	assert.True(t, domainBlocked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveToken_unknownToken(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT resource_owner_id FROM oauth_access_tokens").
		WithArgs("bogus").
		WillReturnRows(sqlmock.NewRows([]string{"resource_owner_id"}))

	_, err := store.ResolveToken(context.Background(), "bogus")
	require.Error(t, err)
}

func TestResolveTag_success(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id FROM tags WHERE lower").
		WithArgs("MastoDev").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	tagID, err := store.ResolveTag("MastoDev")
	require.NoError(t, err)
	assert.Equal(t, id.Id(99), tagID)
}

func TestResolveTag_unknown(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id FROM tags WHERE lower").
		WithArgs("nosuchtag").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.ResolveTag("nosuchtag")
	require.Error(t, err)
}
