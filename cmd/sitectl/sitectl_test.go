package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	var gotAuth, gotSite, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSite = r.Header.Get("site_id")
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/materials", r.URL.Path)
		w.Write([]byte(`{"status":true,"data":[{"id":1,"name":"Cement"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "list", "materials", "supplier=Ram", "--upstream", srv.URL, "--token", "tok", "--site", "3")
	require.NoError(t, err)

	assert.Contains(t, out, `"name": "Cement"`)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "3", gotSite)
	assert.Equal(t, "supplier=Ram", gotQuery)
}

func TestDelete(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.Write([]byte(`{"status":true}`))
	}))
	defer srv.Close()

	_, err := run(t, "delete", "owners", "9", "--upstream", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "POST /owners/delete/9", gotPath)
}

func TestUnknownResource(t *testing.T) {
	_, err := run(t, "get", "invoices", "1", "--upstream", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource")
}

func TestWALink(t *testing.T) {
	out, err := run(t, "wa-link", "098765 43210", "Payment", "received")
	require.NoError(t, err)
	assert.Equal(t, "https://wa.me/919876543210?text=Payment%20received", strings.TrimSpace(out))

	_, err = run(t, "wa-link", "12345", "hi")
	require.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters([]string{"from=2024-01-01", "supplier=Ram=Sons"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", f.Get("from"))
	assert.Equal(t, "Ram=Sons", f.Get("supplier"))

	_, err = parseFilters([]string{"nofilter"})
	assert.Error(t, err)

	f, err = parseFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}
