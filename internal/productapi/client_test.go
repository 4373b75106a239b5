package productapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productdesk/productdesk/internal/products"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 2*time.Second, nil)
}

func TestListSendsQueryAndFillsOmittedFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		assert.Equal(t, "price", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "desc", r.URL.Query().Get("sortDir"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, `{"content":[{"id":6,"name":"Lamp","description":"Desk lamp","price":19.5}],"totalElements":6,"totalPages":2}`)
	})

	page, err := client.List(context.Background(), products.QueryParams{Page: 2, Size: 5, SortBy: "price", SortDir: "desc"})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(6), page.Content[0].IDValue())
	assert.Equal(t, int64(6), page.TotalElements)
	assert.Equal(t, 5, page.Size)
	assert.Equal(t, 2, page.Number)
	assert.False(t, page.First)
	assert.True(t, page.Last)
	assert.False(t, page.Empty)
}

func TestListDerivesEmptyFromContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":null,"totalElements":0,"totalPages":0,"size":10,"number":1,"first":true,"last":true,"empty":false}`)
	})

	page, err := client.List(context.Background(), products.DefaultQueryParams())
	require.NoError(t, err)
	assert.NotNil(t, page.Content)
	assert.True(t, page.Empty)
}

func TestCreateOmitsID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasID := body["id"]
		assert.False(t, hasID)
		assert.Equal(t, "Chair", body["name"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":11,"name":"Chair","description":"Oak chair","price":40}`)
	})

	created, err := client.Create(context.Background(), products.Product{Name: "Chair", Description: "Oak chair", Price: 40}.WithID(99))
	require.NoError(t, err)
	assert.Equal(t, int64(11), created.IDValue())
}

func TestUpdateRequiresID(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.Update(context.Background(), products.Product{Name: "Chair"})
	require.ErrorIs(t, err, products.ErrMissingID)
	assert.False(t, called)
}

func TestUpdatePutsToProductPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/products/7", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":7,"name":"Desk","description":"Standing desk","price":300}`)
	})

	updated, err := client.Update(context.Background(), products.Product{Name: "Desk", Description: "Standing desk", Price: 300}.WithID(7))
	require.NoError(t, err)
	assert.Equal(t, "Desk", updated.Name)
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/products/3", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Delete(context.Background(), 3))
}

func TestHTTPErrorsCarryStatusAndMessage(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "details field", status: http.StatusNotFound, body: `{"details":"Could not find product 42"}`, message: "Could not find product 42"},
		{name: "message field", status: http.StatusBadRequest, body: `{"message":"price must be positive"}`, message: "price must be positive"},
		{name: "plain text", status: http.StatusInternalServerError, body: "database down", message: "database down"},
		{name: "no body", status: http.StatusBadGateway, body: "", message: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.Get(context.Background(), 42)
			var httpErr *products.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tc.status, httpErr.Status)
			assert.Equal(t, tc.message, httpErr.Message)
		})
	}
}

func TestNetworkFailureIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url+"/api", time.Second, nil)
	_, err := client.List(context.Background(), products.DefaultQueryParams())
	var netErr *products.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "list products", netErr.Op)
	assert.Equal(t, "the products service is unreachable", products.Message(err))
}

func TestPingHitsHostRoot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = io.WriteString(w, "OK")
	})

	require.NoError(t, client.Ping(context.Background()))
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveUpstream(op, outcome string, d time.Duration) {
	r.outcomes = append(r.outcomes, op+"="+outcome)
}

func TestObserverSeesOutcomes(t *testing.T) {
	status := http.StatusOK
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"id":1,"name":"Lamp","description":"Desk lamp","price":10}`)
	})
	observer := &recordingObserver{}
	client.WithObserver(observer)

	_, err := client.Get(context.Background(), 1)
	require.NoError(t, err)
	status = http.StatusServiceUnavailable
	_, err = client.Get(context.Background(), 1)
	require.Error(t, err)

	assert.Equal(t, []string{"get product=ok", "get product=http_5xx"}, observer.outcomes)
}
