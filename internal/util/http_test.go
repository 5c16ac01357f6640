package util

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("payload"))
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
	require.NoError(t, err)
	body, err := DownloadFile(srv.Client(), req)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/missing", nil)
	require.NoError(t, err)
	_, err = DownloadFile(srv.Client(), req)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Snippet, "nope")
}

func TestRateLimitedClientPaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewRateLimitedClient(srv.Client(), 10)
	start := time.Now()
	for i := 0; i < 12; i++ {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := c.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	// Burst of 10, then two more at 100ms intervals.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestNewHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(20 * time.Millisecond).Get(srv.URL)
	assert.Error(t, err)
	assert.Zero(t, NewHTTPClient(0).Timeout)
}

func TestParseLinks(t *testing.T) {
	doc := `<html><body>
<a href="/files/dera/data/financial-statement-and-notes-data-sets/2020q1_notes.zip">2020 Q1</a>
<a href="/files/other/2020q1_notes-metadata.json">meta</a>
<a href="/">home</a>
<a href="UPPER.ZIP">upper</a>
<a href="UPPER.ZIP">duplicate</a>
<a name="anchor">no href</a>
</body></html>`
	root, err := html.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	links := ParseLinks(root, ".zip")
	assert.Equal(t, []string{
		"/files/dera/data/financial-statement-and-notes-data-sets/2020q1_notes.zip",
		"UPPER.ZIP",
	}, links)
}
