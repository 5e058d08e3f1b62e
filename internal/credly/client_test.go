package credly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/egfanboy/badge-builder/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (Client, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Config{SdkUrl: server.URL + "/badge-builder/", Timeout: time.Second, HTTPClient: server.Client()})

	return c, &calls
}

func TestFetchSessionTokenWithoutApiKeySkipsNetwork(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"temp_token":"abc"}`))
	})

	token, err := c.FetchSessionToken(context.Background(), "")

	require.ErrorIs(t, err, ErrMissingApiKey)
	require.Empty(t, token)
	require.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestFetchSessionTokenPostsApiKey(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/badge-builder/code", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "secret-key", r.PostForm.Get("access_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp_token":"abc123"}`))
	})

	token, err := c.FetchSessionToken(context.Background(), "secret-key")

	require.NoError(t, err)
	require.Equal(t, "abc123", token)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetchSessionTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "invalid json", status: http.StatusOK, body: `<html>nope</html>`, wantErr: "malformed response"},
		{name: "missing temp_token", status: http.StatusOK, body: `{"data":{}}`, wantErr: "no temp_token"},
		{name: "empty temp_token", status: http.StatusOK, body: `{"temp_token":""}`, wantErr: "no temp_token"},
		{name: "wrong type", status: http.StatusOK, body: `{"temp_token":12}`, wantErr: "malformed response"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"temp_token":"abc"}`, wantErr: "status code 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			token, err := c.FetchSessionToken(context.Background(), "key")

			require.ErrorIs(t, err, ErrTransport)
			require.Contains(t, err.Error(), tt.wantErr)
			require.Empty(t, token)
		})
	}
}

func TestFetchSessionTokenTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Config{SdkUrl: server.URL, Timeout: 50 * time.Millisecond})

	token, err := c.FetchSessionToken(context.Background(), "key")

	require.ErrorIs(t, err, ErrTransport)
	require.Empty(t, token)
}

func TestFetchSessionTokenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	serverUrl := server.URL
	server.Close()

	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(Config{SdkUrl: serverUrl, Timeout: time.Second, Metrics: m})

	_, err := c.FetchSessionToken(context.Background(), "key")

	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, float64(1), testutil.ToFloat64(m.TokenExchanges.WithLabelValues(metrics.ResultFailure)))
}

func TestBuildEmbedLink(t *testing.T) {
	c := NewClient(Config{SdkUrl: "https://credly.test/badge-builder/"})

	link, err := c.BuildEmbedLink("abc123", EmbedRequest{Width: 800, Height: 450, Continue: map[string]int{"id": 7}})
	require.NoError(t, err)

	u, err := url.Parse(link.Url)
	require.NoError(t, err)

	require.True(t, strings.HasSuffix(u.Path, "/embed/abc123"))
	require.Equal(t, "https://credly.test/badge-builder/embed/abc123", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	require.Equal(t, "800", q.Get("width"))
	require.Equal(t, "450", q.Get("height"))
	require.Equal(t, "true", q.Get("TB_iframe"))
	require.Equal(t, `{"id":7}`, q.Get("continue"))
	require.Contains(t, u.RawQuery, "continue=%7B%22id%22%3A7%7D")

	require.Equal(t, 800, link.Width)
	require.Equal(t, 450, link.Height)
	require.Equal(t, DefaultLinkText, link.LinkText)
}

func TestBuildEmbedLinkDefaults(t *testing.T) {
	c := NewClient(Config{SdkUrl: "https://credly.test/badge-builder"})

	link, err := c.BuildEmbedLink("tok", EmbedRequest{Continue: map[string]string{"name": "gold star"}})
	require.NoError(t, err)

	u, err := url.Parse(link.Url)
	require.NoError(t, err)

	require.Equal(t, "/badge-builder/embed/tok", u.Path)
	require.Equal(t, "960", u.Query().Get("width"))
	require.Equal(t, "540", u.Query().Get("height"))
	require.Equal(t, `{"name":"gold star"}`, u.Query().Get("continue"))
	require.Contains(t, u.RawQuery, "gold%20star")
}

func TestBuildEmbedLinkNullContinue(t *testing.T) {
	c := NewClient(Config{})

	link, err := c.BuildEmbedLink("tok", EmbedRequest{})
	require.NoError(t, err)

	u, err := url.Parse(link.Url)
	require.NoError(t, err)

	require.Equal(t, "null", u.Query().Get("continue"))
	require.Equal(t, "credly.com", u.Host)
}

func TestBuildEmbedLinkWithoutToken(t *testing.T) {
	c := NewClient(Config{})

	link, err := c.BuildEmbedLink("", EmbedRequest{Width: 800, Height: 450, Continue: map[string]int{"id": 7}, LinkText: "x"})

	require.ErrorIs(t, err, ErrMissingToken)
	require.Nil(t, link)
}

func TestRenderLink(t *testing.T) {
	link := EmbedLink{Url: "https://credly.test/embed/abc?continue=null&TB_iframe=true&width=960&height=540", Width: 960, Height: 540, LinkText: "Use <Credly>"}

	markup := RenderLink(link)

	require.Equal(t,
		`<a href="https://credly.test/embed/abc?continue=null&amp;TB_iframe=true&amp;width=960&amp;height=540" class="thickbox badge-builder-link" data-width="960" data-height="540">Use &lt;Credly&gt;</a>`,
		markup,
	)
}

func TestRenderLinkAppliesFiltersInOrder(t *testing.T) {
	link := EmbedLink{Url: "https://credly.test/embed/abc", Width: 1, Height: 2, LinkText: "go"}

	wrap := func(markup string, _ EmbedLink) string { return "<p>" + markup + "</p>" }
	suffix := func(markup string, l EmbedLink) string { return markup + "<!-- " + l.LinkText + " -->" }

	markup := RenderLink(link, wrap, suffix)

	require.True(t, strings.HasPrefix(markup, "<p><a "))
	require.True(t, strings.HasSuffix(markup, "</a></p><!-- go -->"))
}

func TestExtraClassFilter(t *testing.T) {
	link := EmbedLink{Url: "https://credly.test/embed/t", Width: 960, Height: 540, LinkText: DefaultLinkText}

	markup := RenderLink(link, ExtraClassFilter("button", " ", `x"y`))
	require.Contains(t, markup, `class="thickbox badge-builder-link button x&#34;y"`)

	require.Equal(t, RenderLink(link), RenderLink(link, ExtraClassFilter()))
}
