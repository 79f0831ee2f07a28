package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yttitle/metrics"
	"yttitle/reconcile"
	"yttitle/rotation"
	"yttitle/status"
	"yttitle/youtube"
)

type fakeService struct {
	status    status.Status
	current   string
	queue     []string
	addErr    error
	broadcast youtube.Broadcast
	checkErr  error
	result    reconcile.Result
	updateErr error
}

func (s *fakeService) Status() status.Status        { return s.status }
func (s *fakeService) Broadcast() youtube.Broadcast { return s.broadcast }
func (s *fakeService) CurrentTitle() string         { return s.current }
func (s *fakeService) Titles() []string             { return s.queue }

func (s *fakeService) NextTitle() string {
	if len(s.queue) == 0 {
		return "generated"
	}
	return s.queue[0]
}

func (s *fakeService) AddTitle(ctx context.Context, title string) error {
	if s.addErr != nil {
		return s.addErr
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: empty title", rotation.ErrInvalidTitle)
	}
	s.queue = append(s.queue, title)
	return nil
}

func (s *fakeService) TriggerCheck(ctx context.Context) (youtube.Broadcast, error) {
	return s.broadcast, s.checkErr
}

func (s *fakeService) TriggerUpdate(ctx context.Context) (reconcile.Result, error) {
	return s.result, s.updateErr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGetStatus(t *testing.T) {
	svc := &fakeService{
		status:    status.Status{Message: "Channel is live", Severity: status.Success},
		current:   "Now",
		queue:     []string{"A", "B"},
		broadcast: youtube.Broadcast{IsLive: true, VideoID: "v1", Title: "Now"},
	}
	rec := do(t, New(svc, nil, nil), http.MethodGet, "/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode[StatusResponse](t, rec)
	assert.Equal(t, "Channel is live", resp.Message)
	assert.Equal(t, status.Success, resp.Severity)
	assert.True(t, resp.Live)
	assert.Equal(t, "v1", resp.VideoID)
	assert.Equal(t, "Now", resp.CurrentTitle)
	assert.Equal(t, "A", resp.NextTitle)
	assert.Equal(t, 2, resp.QueueLength)
}

func TestListTitles_EmptyQueue(t *testing.T) {
	rec := do(t, New(&fakeService{}, nil, nil), http.MethodGet, "/titles", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TitlesResponse](t, rec)
	assert.Equal(t, []string{}, resp.Titles)
	assert.Equal(t, "generated", resp.NextTitle)
}

func TestAddTitle(t *testing.T) {
	svc := &fakeService{queue: []string{"A"}}
	h := New(svc, nil, nil)

	rec := do(t, h, http.MethodPost, "/titles", `{"title":"B"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"A", "B"}, decode[TitlesResponse](t, rec).Titles)

	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "malformed", body: "not json", want: http.StatusBadRequest},
		{name: "blank title", body: `{"title":"  "}`, want: http.StatusBadRequest},
		{name: "store failure", body: `{"title":"C"}`, err: errors.New("disk full"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.addErr = tt.err
			rec := do(t, h, http.MethodPost, "/titles", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestCheck(t *testing.T) {
	svc := &fakeService{broadcast: youtube.Broadcast{IsLive: true, VideoID: "v1", Title: "Now"}}
	h := New(svc, nil, nil)

	rec := do(t, h, http.MethodPost, "/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CycleResponse](t, rec)
	assert.True(t, resp.Live)
	assert.Equal(t, "v1", resp.VideoID)
	assert.Empty(t, resp.Error)

	svc.checkErr = errors.New("network down")
	svc.status = status.Status{Message: "Error checking live status: network down", Severity: status.Error}
	rec = do(t, h, http.MethodPost, "/check", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp = decode[CycleResponse](t, rec)
	assert.Equal(t, "network down", resp.Error)
	assert.Equal(t, status.Error, resp.Status.Severity)
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		outcome reconcile.Outcome
		err     error
		want    int
	}{
		{name: "updated", outcome: reconcile.OutcomeUpdated, want: http.StatusOK},
		{name: "not live", outcome: reconcile.OutcomeNotLive, want: http.StatusOK},
		{name: "remote failure", outcome: reconcile.OutcomeFailed, err: errors.New("quota"), want: http.StatusBadGateway},
		{name: "persist failure", outcome: reconcile.OutcomeUpdated, err: errors.New("disk full"), want: http.StatusInternalServerError},
		{name: "invariant", outcome: reconcile.OutcomeFailed, err: &rotation.InvariantError{Head: "X", Applied: "A"}, want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{
				result:    reconcile.Result{CycleID: "c1", Outcome: tt.outcome, Title: "A"},
				updateErr: tt.err,
			}
			rec := do(t, New(svc, nil, nil), http.MethodPost, "/update", "")
			assert.Equal(t, tt.want, rec.Code)
			resp := decode[CycleResponse](t, rec)
			assert.Equal(t, "c1", resp.CycleID)
			assert.Equal(t, string(tt.outcome), resp.Outcome)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	h := New(&fakeService{queue: []string{"A", "B", "C"}}, nil, m)

	do(t, h, http.MethodGet, "/status", "")
	do(t, h, http.MethodPost, "/titles", "bad")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "yttitle_queue_length 3")
	assert.Contains(t, body, `yttitle_http_requests_total{code="2xx"} 1`)
	assert.Contains(t, body, `yttitle_http_requests_total{code="4xx"} 1`)
}

func TestMetricsRoute_AbsentWithoutMetrics(t *testing.T) {
	rec := do(t, New(&fakeService{}, nil, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, addr, New(&fakeService{}, nil, nil), nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}
