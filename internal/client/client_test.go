package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-predictor/internal/features"
)

func TestClient_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "abc", r.Header.Get("X-Request-ID"))

		var rec map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		assert.Equal(t, 60.0, rec["Maths"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"label":1,"probability":0.82,"request_id":"abc"}`))
	}))
	defer srv.Close()

	c := NewREST(srv.URL+"/", time.Second)
	got, err := c.Predict(context.Background(), features.Record{"Maths": 60}, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Label)
	assert.Equal(t, 0.82, got.Probability)
	assert.Equal(t, "abc", got.RequestID)
}

func TestClient_PredictErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("X-Request-ID") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid request"}`))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"artifact missing: model.json"}`))
	}))
	defer srv.Close()

	c := NewREST(srv.URL, time.Second)

	_, err := c.Predict(context.Background(), features.Record{}, "")
	require.ErrorIs(t, err, ErrUnavailable)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "artifact missing: model.json", apiErr.Msg)

	_, err = c.Predict(context.Background(), features.Record{}, "bad")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestClient_HealthAndInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"ready"}`))
	})
	mux.HandleFunc("/model/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"ready","manifest":{"run_id":"r1","feature_count":2},"schema":["CGPA","IQ"]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewREST(srv.URL, 0)

	state, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", state)

	info, err := c.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", info.Manifest.RunID)
	assert.Equal(t, features.Schema{"CGPA", "IQ"}, info.Schema)
}

func TestClient_HealthUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"state":"uninitialized","error":"load artifacts: artifact corrupt"}`))
	}))
	defer srv.Close()

	state, err := NewREST(srv.URL, time.Second).Health(context.Background())
	assert.Equal(t, "uninitialized", state)
	assert.ErrorIs(t, err, ErrUnavailable)
}
