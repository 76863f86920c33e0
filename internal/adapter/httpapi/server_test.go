package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spottr/hazard-intel/internal/adapter/httpapi"
	"github.com/spottr/hazard-intel/internal/domain"
	"github.com/spottr/hazard-intel/internal/engine"
	"github.com/spottr/hazard-intel/internal/observability"
)

var testTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type capturingPublisher struct {
	events []string
}

func (p *capturingPublisher) Publish(_ context.Context, _ domain.Hazard, event string) error {
	p.events = append(p.events, event)
	return nil
}

func newTestServer(t *testing.T) (*httpapi.Server, *capturingPublisher) {
	t.Helper()
	eng := engine.New(engine.DefaultConfig(), clockwork.NewFakeClockAt(testTime),
		slog.Default(), observability.NewMetricsForTesting())
	pub := &capturingPublisher{}
	return httpapi.NewServer(":0", eng, pub, &mockReadiness{}, slog.Default()), pub
}

func doJSON(t *testing.T, srv *httpapi.Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func reportBody(class string, confidence, lat, lon float64) string {
	return fmt.Sprintf(`{"class_name":%q,"confidence":%v,"latitude":%v,"longitude":%v,"bbox":[10,20,110,220],"user_id":"reporter-1"}`,
		class, confidence, lat, lon)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv, _ := newTestServer(t)
		rec, body := doJSON(t, srv, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("not ready", func(t *testing.T) {
		eng := engine.New(engine.DefaultConfig(), clockwork.NewFakeClockAt(testTime),
			slog.Default(), observability.NewMetricsForTesting())
		srv := httpapi.NewServer(":0", eng, nil,
			&mockReadiness{err: fmt.Errorf("still starting")}, slog.Default())

		rec, body := doJSON(t, srv, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not ready", body["status"])
	})
}

func TestPostHazard(t *testing.T) {
	t.Run("creates a hazard", func(t *testing.T) {
		srv, pub := newTestServer(t)
		rec, body := doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.9, 10.0, 20.0))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Pothole", body["class_name"])
		assert.Equal(t, "unverified", body["status"])
		assert.NotEmpty(t, body["hazard_id"])
		assert.Equal(t, []string{"created"}, pub.events)
	})

	t.Run("nearby duplicate merges", func(t *testing.T) {
		srv, pub := newTestServer(t)
		rec1, body1 := doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.9, 10.0, 20.0))
		require.Equal(t, http.StatusCreated, rec1.Code)

		rec2, body2 := doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.7, 10.0001, 20.0))
		assert.Equal(t, http.StatusOK, rec2.Code)
		assert.Equal(t, body1["hazard_id"], body2["hazard_id"])
		assert.Equal(t, []string{"created", "merged"}, pub.events)
	})

	t.Run("validation failures", func(t *testing.T) {
		srv, _ := newTestServer(t)
		for name, payload := range map[string]string{
			"not json":              `{`,
			"missing class":         `{"confidence":0.5,"latitude":1,"longitude":2,"bbox":[0,0,1,1]}`,
			"confidence too high":   `{"class_name":"Pothole","confidence":1.5,"latitude":1,"longitude":2,"bbox":[0,0,1,1]}`,
			"latitude out of range": `{"class_name":"Pothole","confidence":0.5,"latitude":95,"longitude":2,"bbox":[0,0,1,1]}`,
			"short bbox":            `{"class_name":"Pothole","confidence":0.5,"latitude":1,"longitude":2,"bbox":[0,0,1]}`,
		} {
			t.Run(name, func(t *testing.T) {
				rec, body := doJSON(t, srv, http.MethodPost, "/hazards", payload)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.NotEmpty(t, body["error"])
			})
		}
	})
}

func TestPostFeedback(t *testing.T) {
	createHazard := func(t *testing.T, srv *httpapi.Server) string {
		t.Helper()
		rec, body := doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.9, 10.0, 20.0))
		require.Equal(t, http.StatusCreated, rec.Code)
		return body["hazard_id"].(string)
	}

	t.Run("accepted confirm", func(t *testing.T) {
		srv, pub := newTestServer(t)
		id := createHazard(t, srv)

		rec, body := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm","latitude":10.0,"longitude":20.0}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		ci := body["crowd_intelligence"].(map[string]any)
		assert.Equal(t, 1.0, ci["confirmations"])
		assert.Equal(t, "updated", pub.events[len(pub.events)-1])
	})

	t.Run("unknown hazard", func(t *testing.T) {
		srv, _ := newTestServer(t)
		rec, _ := doJSON(t, srv, http.MethodPost, "/hazards/missing/feedback",
			`{"user_id":"u1","feedback_type":"confirm"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("too far", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := createHazard(t, srv)

		rec, body := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm","latitude":11.0,"longitude":20.0}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, body["error"], "too far")
	})

	t.Run("bad feedback type", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := createHazard(t, srv)

		rec, _ := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"retract"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing user_id", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := createHazard(t, srv)

		rec, _ := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"feedback_type":"confirm"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := createHazard(t, srv)

		rec, _ := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm","confidence":2}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("partial coordinates", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := createHazard(t, srv)

		rec, _ := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm","latitude":10.0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate feedback is a no-op success", func(t *testing.T) {
		srv, _ := newTestServer(t)
		id := createHazard(t, srv)

		doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm"}`)
		rec, body := doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		ci := body["crowd_intelligence"].(map[string]any)
		assert.Equal(t, 1.0, ci["total_feedback"])
	})
}

func TestGetHazard(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, created := doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Debris", 0.8, 10.0, 20.0))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := created["hazard_id"].(string)

	t.Run("found", func(t *testing.T) {
		rec, body := doJSON(t, srv, http.MethodGet, "/hazards/"+id, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Debris", body["class_name"])
	})

	t.Run("not found", func(t *testing.T) {
		rec, _ := doJSON(t, srv, http.MethodGet, "/hazards/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("with history", func(t *testing.T) {
		doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
			`{"user_id":"u1","feedback_type":"confirm","comment":"still there"}`)

		rec, body := doJSON(t, srv, http.MethodGet, "/hazards/"+id+"?include_history=true", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		history := body["feedback_history"].([]any)
		require.Len(t, history, 1)
		entry := history[0].(map[string]any)
		assert.Equal(t, "u1", entry["user_id"])
		assert.Equal(t, "confirm", entry["feedback_type"])
		assert.Equal(t, "still there", entry["comment"])
	})
}

func TestNearby(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.9, 10.0001, 20.0))
	doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Debris", 0.8, 10.09, 20.0))

	t.Run("filters by radius", func(t *testing.T) {
		rec, body := doJSON(t, srv, http.MethodGet, "/hazards/nearby?lat=10.0&lon=20.0&radius_meters=100", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1.0, body["count"])

		hazards := body["hazards"].([]any)
		require.Len(t, hazards, 1)
		assert.Equal(t, "Pothole", hazards[0].(map[string]any)["class_name"])
	})

	t.Run("default radius still excludes the far hazard", func(t *testing.T) {
		rec, body := doJSON(t, srv, http.MethodGet, "/hazards/nearby?lat=10.0&lon=20.0", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1.0, body["count"])
	})

	t.Run("missing coordinates", func(t *testing.T) {
		rec, _ := doJSON(t, srv, http.MethodGet, "/hazards/nearby?lat=10.0", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad radius", func(t *testing.T) {
		rec, _ := doJSON(t, srv, http.MethodGet, "/hazards/nearby?lat=10.0&lon=20.0&radius_meters=-5", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		rec, body := doJSON(t, srv, http.MethodGet, "/hazards/nearby?lat=-50.0&lon=100.0", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0.0, body["count"])
		assert.Empty(t, body["hazards"])
		assert.NotNil(t, body["hazards"])
	})
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.9, 10.0, 20.0))

	rec, body := doJSON(t, srv, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["total_hazards"])
	assert.Equal(t, 1.0, body["active_hazards"])
	assert.Equal(t, 3.0, body["verification_threshold"])
	assert.Equal(t, 2.0, body["denial_threshold"])
}

func TestUserContribution(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, created := doJSON(t, srv, http.MethodPost, "/hazards", reportBody("Pothole", 0.9, 10.0, 20.0))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := created["hazard_id"].(string)

	doJSON(t, srv, http.MethodPost, "/hazards/"+id+"/feedback",
		`{"user_id":"u1","feedback_type":"confirm"}`)

	rec, body := doJSON(t, srv, http.MethodGet, "/users/u1/contribution", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", body["user_id"])
	assert.Equal(t, 1.0, body["total_feedback"])
	assert.Equal(t, 5.0, body["reputation_score"])
	assert.Equal(t, []any{id}, body["hazards_contributed"])
}
