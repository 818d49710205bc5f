// SPDX-License-Identifier: MIT

package hostclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:            baseURL,
		Timeout:            500 * time.Millisecond,
		MaxRetries:         2,
		RetryWait:          time.Millisecond,
		CircuitThreshold:   100,
		CircuitMinAttempts: 100,
	}, zerolog.Nop())
}

func TestCall_HostRPCErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"file not found"}}`))
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	_, err := c.Call(context.Background(), "Files.GetFileDetails", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 attempt for a host-reported rpc error, got %d", calls.Load())
	}
}

func TestCall_TransportFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	_, err := c.Call(context.Background(), "VideoLibrary.GetMovies", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if want := int32(c.cfg.MaxRetries + 1); calls.Load() != want {
		t.Fatalf("expected %d attempts for a transport failure, got %d", want, calls.Load())
	}
}

func TestFileModTime_HostErrorMeansAbsent(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid params, No existing file"}}`))
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	_, exists, err := c.FileModTime(context.Background(), "/library/Movie (2020)/movie.nfo")
	if err != nil {
		t.Fatalf("expected no error for a missing sidecar, got: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for a host-reported file-not-found error")
	}
}

func TestFileModTime_TransportFailurePropagates(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	_, _, err := c.FileModTime(context.Background(), "/library/Movie (2020)/movie.nfo")
	if err == nil {
		t.Fatal("expected a transport error to propagate rather than be treated as absence")
	}
}

func TestFileModTime_PresentFileParsesTimestamp(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"filedetails":{"lastmodified":"2024-03-01 12:00:00"}}}`))
	}))
	defer s.Close()

	c := newTestClient(s.URL)
	mtime, exists, err := c.FileModTime(context.Background(), "/library/Movie (2020)/movie.nfo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !mtime.Equal(want) {
		t.Fatalf("expected mtime %v, got %v", want, mtime)
	}
}
