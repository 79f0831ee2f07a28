package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func assertSample(t *testing.T, body, sample string) {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if line == sample {
			return
		}
	}
	t.Errorf("scrape missing %q:\n%s", sample, body)
}

func TestObserveCycle(t *testing.T) {
	m := New()

	m.ObserveCycle("updated", false)
	m.ObserveCycle("updated", false)
	m.ObserveCycle("not_live", false)
	m.ObserveCycle("failed", true)

	body := scrape(t, m, nil)
	assertSample(t, body, `yttitle_cycles_total{outcome="updated"} 2`)
	assertSample(t, body, `yttitle_cycles_total{outcome="not_live"} 1`)
	assertSample(t, body, `yttitle_title_updates_total 2`)
	assertSample(t, body, `yttitle_errors_total 1`)
}

func TestHandler_RefreshesGauges(t *testing.T) {
	m := New()
	body := scrape(t, m, func() { m.SetQueueLength(7) })
	assertSample(t, body, "yttitle_queue_length 7")
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	body := scrape(t, m, nil)
	assertSample(t, body, `yttitle_http_requests_total{code="2xx"} 1`)
	assertSample(t, body, `yttitle_http_requests_total{code="4xx"} 1`)
}
