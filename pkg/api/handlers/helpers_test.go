package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/clock"
	"github.com/sallie/companion/pkg/companion"
	"github.com/sallie/companion/pkg/emotion"
	"github.com/sallie/companion/pkg/memory"
	"github.com/sallie/companion/pkg/personality"
	memstorage "github.com/sallie/companion/pkg/storage/memory"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestCompanion returns a started companion on in-process storage.
func newTestCompanion(t *testing.T) *companion.Companion {
	t.Helper()
	c, err := companion.New(companion.Options{
		Memory:      memory.DefaultOptions(),
		Emotion:     emotion.DefaultOptions(),
		Personality: personality.DefaultOptions(),
		Storage:     memstorage.NewMemoryStorage(),
		Clock:       clock.NewManual(testEpoch),
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body response.ErrorResponse
	decodeBody(t, w, &body)
	return body.Error.Code
}
