package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/lms/internal/models"
)

func newStubES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestSearch_DecodesHits(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	es := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": {
				"total": {"value": 2},
				"hits": [
					{"_source": {"id": "c1", "title": "Intro", "instructor_id": "teach-1", "is_free": true, "status": "PUBLISHED"}},
					{"_source": {"id": "c2", "title": "Advanced", "instructor_id": "teach-1", "price": 99, "status": "PUBLISHED"}}
				]
			}
		}`))
	})

	total, courses, err := Search(context.Background(), es, "courses", "intro", 0, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(2), total)
	require.Len(t, courses, 2)
	assert.Equal(t, "c1", courses[0].ID)
	assert.Equal(t, "Intro", courses[0].Title)
	assert.True(t, courses[0].IsFree)
	assert.Equal(t, models.Course{
		ID: "c2", Title: "Advanced", InstructorID: "teach-1", Price: 99, Status: models.CourseStatusPublished,
	}, courses[1])

	// Paging is forwarded as-is.
	assert.EqualValues(t, 0, gotBody["from"])
	assert.EqualValues(t, 10, gotBody["size"])
}

func TestSearch_ServerError(t *testing.T) {
	t.Parallel()

	es := newStubES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := Search(context.Background(), es, "courses", "intro", 0, 10)
	require.Error(t, err)
}
