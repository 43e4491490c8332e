package planning

import (
	"context"
	stderrors "errors"
	"regexp"
	"testing"

	apperrors "analytics-assistant/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresResolver_ResolveEntities(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM entity_access")).
		WithArgs("caller-1", 500).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id"}).AddRow("e1").AddRow("e2"))

	ids, err := NewPostgresResolver(db, 500).ResolveEntities(context.Background(), "caller-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolver_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM entity_access")).
		WillReturnError(stderrors.New("connection refused"))

	_, err = NewPostgresResolver(db, 0).ResolveEntities(context.Background(), "caller-1")

	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolver_AnonymousCaller(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ids, err := NewPostgresResolver(db, 10).ResolveEntities(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaticResolver_ReturnsCopy(t *testing.T) {
	s := StaticResolver{"a"}
	ids, _ := s.ResolveEntities(context.Background(), "")
	ids[0] = "changed"
	assert.Equal(t, "a", s[0])
}
