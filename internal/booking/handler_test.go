package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

func newTestHandler(t *testing.T) (*MemoryStore, http.Handler) {
	t.Helper()
	store := NewMemoryStore()
	return store, NewHandler(store, logging.Discard()).Routes()
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndGet(t *testing.T) {
	_, h := newTestHandler(t)

	resp := doRequest(h, http.MethodPost, "/", `{"name":"Asha","mobile":"9876543210","problem":"fever","date":"15/01/2026","time":"10:00 AM"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "2026-01-15", created.RequestedDate)
	assert.Equal(t, StatusPending, created.Status)

	resp = doRequest(h, http.MethodGet, "/1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var got Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
}

func TestHandlerCreatePrefersPhoneOverContact(t *testing.T) {
	_, h := newTestHandler(t)
	body := `{"name":"Asha","contact":"111","Contact":"222","phone":"9876543210","problem":"fever","date":"15/01/2026","time":"10:00 AM"}`

	for i := 0; i < 20; i++ {
		resp := doRequest(h, http.MethodPost, "/", body)
		require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

		var created Record
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.Equal(t, "9876543210", created.Contact)
		assert.Equal(t, "9876543210", created.Mobile)
	}
}

func TestHandlerCreateIncomplete(t *testing.T) {
	_, h := newTestHandler(t)

	resp := doRequest(h, http.MethodPost, "/", `{"name":"Asha","problem":"fever"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body struct {
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"Mobile", "Date", "Time"}, body.Missing)
}

func TestHandlerErrorsMapToStatusCodes(t *testing.T) {
	store, h := newTestHandler(t)
	_, err := store.Save(context.Background(), fullCandidate("Asha", "111"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing booking", http.MethodGet, "/99", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/abc", "", http.StatusBadRequest},
		{"bogus status", http.MethodPut, "/1/status", `{"status":"Bogus"}`, http.StatusBadRequest},
		{"no-op patch", http.MethodPatch, "/1", `{"colour":"blue"}`, http.StatusBadRequest},
		{"bad json", http.MethodPatch, "/1", `{`, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/42", "", http.StatusNotFound},
		{"list bad status", http.MethodGet, "/?status=Archived", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.Code, resp.Body.String())
		})
	}
}

func TestHandlerLifecycle(t *testing.T) {
	store, h := newTestHandler(t)
	ctx := context.Background()
	rec, err := store.Save(ctx, fullCandidate("Asha", "111"))
	require.NoError(t, err)
	_, err = store.Save(ctx, fullCandidate("Ravi", "222"))
	require.NoError(t, err)

	resp := doRequest(h, http.MethodPut, "/1/status", `{"status":"Scheduled"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(h, http.MethodPost, "/1/reschedule", `{"date":"2026-02-01","time":"5 pm"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	var moved Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&moved))
	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, "17:00", moved.RequestedTime)

	resp = doRequest(h, http.MethodGet, "/?status=Rescheduled", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var list ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, rec.ID, list.Bookings[0].ID)

	resp = doRequest(h, http.MethodGet, "/?q=ravi", "")
	require.Equal(t, http.StatusOK, resp.Code)
	list = ListResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)

	resp = doRequest(h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var stats Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[StatusRescheduled])

	resp = doRequest(h, http.MethodDelete, "/1", "")
	assert.Equal(t, http.StatusNoContent, resp.Code)
}
