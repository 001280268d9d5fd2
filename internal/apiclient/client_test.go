package apiclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return apiclient.New(apiclient.Options{BaseURL: srv.URL}, zap.NewNop())
}

func TestClient_InjectsTokenAndSite(t *testing.T) {
	var gotAuth, gotSite string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSite = r.Header.Get("site_id")
		w.Write([]byte(`[]`))
	})

	_, err := c.WithSession(apiclient.Session{Token: "tok-1", SiteID: "12"}).Get(context.Background(), "/materials", nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "12", gotSite)
}

func TestClient_AllSitesWhenNoSiteSelected(t *testing.T) {
	var gotAuth, gotSite string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSite = r.Header.Get("site_id")
		w.Write([]byte(`[]`))
	})

	_, err := c.Get(context.Background(), "/sites", nil)
	require.NoError(t, err)

	assert.Empty(t, gotAuth, "no session, no bearer")
	assert.Equal(t, "0", gotSite)
}

func TestClient_WithSessionDoesNotMutateBase(t *testing.T) {
	var sites []string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		sites = append(sites, r.Header.Get("site_id"))
		w.Write([]byte(`[]`))
	})

	scoped := c.WithSession(apiclient.Session{SiteID: "4"})
	_, err := scoped.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"4", "0"}, sites)
	assert.Equal(t, "", c.Session().SiteID)
}

func TestClient_NonSuccessStatusIsHTTPError(t *testing.T) {
	var calls int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	})

	_, err := c.Post(context.Background(), "/materials", map[string]any{"name": "x"})
	require.Error(t, err)

	var httpErr *apiclient.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, http.MethodPost, httpErr.Method)
	assert.JSONEq(t, `{"message":"boom"}`, string(httpErr.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "the wrapper never retries")
}

func TestClient_GetPassesQuery(t *testing.T) {
	var gotQuery url.Values
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	})

	_, err := c.Get(context.Background(), "/labor-entries", url.Values{"from": {"2026-01-01"}})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", gotQuery.Get("from"))
}

func TestClient_PostMultipart(t *testing.T) {
	var gotName, gotFile string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotName = r.FormValue("name")
		f, _, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile = string(b)
		w.Write([]byte(`{"status":true}`))
	})

	files := []apiclient.File{{Field: "image", Name: "bill.jpg", Content: []byte("jpeg-bytes")}}
	_, err := c.PostMultipart(context.Background(), "/materials", map[string]string{"name": "Cement"}, files)
	require.NoError(t, err)

	assert.Equal(t, "Cement", gotName)
	assert.Equal(t, "jpeg-bytes", gotFile)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := apiclient.New(apiclient.Options{BaseURL: base}, zap.NewNop())
	_, err := c.Get(context.Background(), "/sites", nil)
	require.Error(t, err)

	var httpErr *apiclient.HTTPError
	assert.False(t, errors.As(err, &httpErr))
}
