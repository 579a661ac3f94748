package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/adkit/core"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, nil), mock
}

func TestPostgres_GetBannersByIDs(t *testing.T) {
	repo, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "link", "max_price"}).
		AddRow(int64(1), "Summer sale", "Shoes -50%", "https://example.com/1", "1.50").
		AddRow(int64(3), "Winter", nil, nil, "0")
	mock.ExpectQuery(regexp.QuoteMeta("FROM banner")).
		WithArgs("{1,2,3}").
		WillReturnRows(rows)

	got, err := repo.GetBannersByIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Summer sale", got[1].Title)
	assert.Equal(t, "https://example.com/1", got[1].Link)
	assert.True(t, decimal.RequireFromString("1.5").Equal(got[1].Price))

	assert.Equal(t, "", got[3].Description)
	assert.False(t, got[3].HasLink())
	_, ok := got[2]
	assert.False(t, ok, "unknown id must be absent")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBannersByIDs_SkipsInvalidRows(t *testing.T) {
	repo, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "link", "max_price"}).
		AddRow(int64(1), "ok", "d", nil, "2").
		AddRow(int64(2), "broken", "d", nil, "-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM banner")).WillReturnRows(rows)

	got, err := repo.GetBannersByIDs(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, int64(1))
}

func TestPostgres_GetBannersByIDs_Empty(t *testing.T) {
	repo, mock := newMock(t)

	got, err := repo.GetBannersByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet(), "empty input must not query")
}

func TestPostgres_GetBannersByIDs_QueryError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM banner")).WillReturnError(errors.New("connection reset"))

	_, err := repo.GetBannersByIDs(context.Background(), []int64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgres_GetPlatform(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(mock sqlmock.Sqlmock)
		want     core.Platform
		notFound bool
		wantErr  bool
	}{
		{
			name: "platform",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM auth_user")).
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "description", "role"}).
						AddRow(int64(7), "news-site", "daily news", 2))
			},
			want: core.Platform{ID: 7, Username: "news-site", Description: "daily news", Role: core.RolePlatform},
		},
		{
			name: "null description",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM auth_user")).
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "description", "role"}).
						AddRow(int64(7), "acme", nil, 1))
			},
			want: core.Platform{ID: 7, Username: "acme", Role: core.RoleAdvertiser},
		},
		{
			name: "missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM auth_user")).
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "description", "role"}))
			},
			notFound: true,
		},
		{
			name: "driver error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM auth_user")).
					WithArgs(int64(7)).
					WillReturnError(errors.New("timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			tt.setup(mock)

			got, err := repo.GetPlatform(context.Background(), 7)
			switch {
			case tt.notFound:
				assert.ErrorIs(t, err, core.ErrPlatformNotFound)
			case tt.wantErr:
				require.Error(t, err)
				assert.False(t, errors.Is(err, core.ErrPlatformNotFound))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutBanner(core.Banner{ID: 1, Title: "a", Price: decimal.RequireFromString("1")}))
	require.NoError(t, m.PutBanner(core.Banner{ID: 2, Title: "b", Price: decimal.RequireFromString("2")}))
	assert.Error(t, m.PutBanner(core.Banner{ID: 3, Price: decimal.RequireFromString("-1")}))
	m.PutPlatform(core.Platform{ID: 9, Username: "zoo", Role: core.RolePlatform})

	got, err := m.GetBannersByIDs(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	m.DeleteBanner(2)
	got, err = m.GetBannersByIDs(ctx, []int64{2})
	require.NoError(t, err)
	assert.Empty(t, got)

	p, err := m.GetPlatform(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "zoo", p.Username)

	_, err = m.GetPlatform(ctx, 10)
	assert.ErrorIs(t, err, core.ErrPlatformNotFound)
}
