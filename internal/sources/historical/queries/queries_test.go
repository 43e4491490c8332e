package queries

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"analytics-assistant/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	windowStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
)

func testParams() Params {
	return Params{EntityIDs: []string{"e1", "e2"}, Start: windowStart, End: windowEnd, Limit: 50}
}

func TestExecute_EntityPerformance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM entity_daily_metrics m")).
		WithArgs(pq.Array([]string{"e1", "e2"}), windowStart, windowEnd, 50).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "name", "revenue", "orders", "recipients", "conversions"}).
			AddRow("e2", "Second", 900.0, 30, 1000, 25).
			AddRow("e1", "First", 100.0, 0, 0, 0))

	rows, count, _, err := Execute(context.Background(), &Backends{DB: db}, models.TemplateEntityPerformance, testParams())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "e2", rows[0]["entity_id"])
	assert.Equal(t, 1, rows[0]["rank"])
	assert.Equal(t, 30.0, rows[0]["average_order_value"])
	assert.Equal(t, 0.025, rows[0]["conversion_rate"])
	_, hasAOV := rows[1]["average_order_value"]
	assert.False(t, hasAOV)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_TimeSeriesWithComparison(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cs, ce := windowStart.AddDate(0, -1, 0), windowStart
	p := testParams()
	p.ComparisonStart, p.ComparisonEnd = &cs, &ce

	cols := []string{"day", "revenue", "orders", "refunds"}
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY m.day")).
		WithArgs(pq.Array(p.EntityIDs), windowStart, windowEnd, 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(windowStart, 100.0, 3, 0.0).
			AddRow(windowStart.AddDate(0, 0, 1), 50.0, 1, 10.0))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY m.day")).
		WithArgs(pq.Array(p.EntityIDs), cs, ce, 50).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(cs, 70.0, 2, 0.0))

	rows, count, _, err := Execute(context.Background(), &Backends{DB: db}, models.TemplateTimeSeriesFinancial, p)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, "2026-08-01", rows[0]["date"])
	assert.Equal(t, "current", rows[1]["period"])
	assert.Equal(t, "comparison", rows[2]["period"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name     string
		template models.TemplateID
		params   func() Params
		wantErr  error
	}{
		{name: "unknown template", template: "cohort_magic", params: testParams, wantErr: ErrUnknownTemplate},
		{name: "no entities", template: models.TemplateEntityPerformance, params: func() Params { p := testParams(); p.EntityIDs = nil; return p }, wantErr: ErrMissingParam},
		{name: "no limit", template: models.TemplateEntityPerformance, params: func() Params { p := testParams(); p.Limit = 0; return p }, wantErr: ErrMissingParam},
		{name: "inverted window", template: models.TemplateEntityPerformance, params: func() Params { p := testParams(); p.End = p.Start; return p }, wantErr: ErrMissingParam},
		{name: "no database", template: models.TemplateTimeSeriesFinancial, params: testParams, wantErr: ErrBackendMissing},
		{name: "no elasticsearch", template: models.TemplateRelationshipEngagement, params: testParams, wantErr: ErrBackendMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := Execute(context.Background(), &Backends{}, tt.template, tt.params())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func newTestES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func TestExecute_RelationshipEngagement(t *testing.T) {
	var gotPath, gotBody string
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, `{
			"took": 3,
			"hits": {"total": {"value": 120, "relation": "eq"}, "hits": []},
			"aggregations": {"by_entity": {"buckets": [
				{"key": "e1", "doc_count": 120, "by_type": {"buckets": [
					{"key": "delivered", "doc_count": 100},
					{"key": "opened", "doc_count": 15},
					{"key": "clicked", "doc_count": 5}
				]}}
			]}}
		}`)
	})

	rows, count, _, err := Execute(context.Background(), &Backends{ES: es, EngageIndex: "engagement-events"}, models.TemplateRelationshipEngagement, testParams())

	require.NoError(t, err)
	assert.Equal(t, "/engagement-events/_search", gotPath)
	assert.Contains(t, gotBody, `"entity_id":["e1","e2"]`)
	assert.Contains(t, gotBody, `"size":50`)
	require.Equal(t, 1, count)
	assert.Equal(t, int64(15), rows[0]["opened"])
	assert.Equal(t, int64(0), rows[0]["unsubscribed"])
	assert.Equal(t, 0.15, rows[0]["open_rate"])
	assert.Equal(t, 0.05, rows[0]["click_rate"])
}

func TestExecute_RelationshipEngagementError(t *testing.T) {
	es := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error": "cluster unavailable"}`)
	})

	_, _, _, err := Execute(context.Background(), &Backends{ES: es, EngageIndex: "engagement-events"}, models.TemplateRelationshipEngagement, testParams())

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "503"))
}
