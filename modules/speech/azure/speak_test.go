package azure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testSynthesizer(t *testing.T, endpoint string, sleeps *[]time.Duration) *Synthesizer {
	t.Helper()

	cfg := Config{
		SubscriptionKey: "key",
		Endpoint:        endpoint,
		Rate:            "+10.00%",
	}
	cfg.defaults()

	return &Synthesizer{
		config:    cfg,
		logger:    slog.Default(),
		client:    &http.Client{},
		outputDir: t.TempDir(),
		sleep:     func(d time.Duration) { *sleeps = append(*sleeps, d) },
		now:       func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "key" {
			t.Error("missing subscription key header")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/ssml+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
		if of := r.Header.Get("X-Microsoft-OutputFormat"); of != "audio-24khz-48kbitrate-mono-mp3" {
			t.Errorf("OutputFormat = %q", of)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	s := testSynthesizer(t, srv.URL, &sleeps)

	if err := s.Speak(context.Background(), "en-GB-RyanNeural", "Ale & stew."); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if !strings.Contains(gotBody, "<voice name='en-GB-RyanNeural'>") {
		t.Errorf("SSML missing voice: %s", gotBody)
	}
	if !strings.Contains(gotBody, "<prosody rate='+10.00%'>") {
		t.Errorf("SSML missing prosody rate: %s", gotBody)
	}
	if !strings.Contains(gotBody, "Ale &amp; stew.") {
		t.Errorf("text must be XML-escaped: %s", gotBody)
	}
	if len(sleeps) != 0 {
		t.Errorf("no backoff expected on success, got %v", sleeps)
	}

	entries, err := os.ReadDir(s.outputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one audio file, got %v (%v)", entries, err)
	}
	audio, _ := os.ReadFile(filepath.Join(s.outputDir, entries[0].Name()))
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q", audio)
	}
}

func TestSpeak_DefaultVoice(t *testing.T) {
	t.Parallel()

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	s := testSynthesizer(t, srv.URL, &sleeps)

	if err := s.Speak(context.Background(), "", "hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !strings.Contains(gotBody, "en-US-JennyNeural") {
		t.Errorf("default voice not applied: %s", gotBody)
	}
}

func TestSpeak_EmptyTextSkipsRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	s := testSynthesizer(t, srv.URL, &sleeps)

	if err := s.Speak(context.Background(), "v", "   "); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("blank text must not hit the endpoint, calls = %d", calls.Load())
	}
}

func TestSpeak_RetriesWithBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	var sleeps []time.Duration
	s := testSynthesizer(t, srv.URL, &sleeps)

	if err := s.Speak(context.Background(), "v", "hello"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	want := []time.Duration{40 * time.Second, 80 * time.Second}
	if len(sleeps) != len(want) || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Errorf("backoff = %v, want %v", sleeps, want)
	}
}

func TestSpeak_ExhaustedAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var sleeps []time.Duration
	s := testSynthesizer(t, srv.URL, &sleeps)

	err := s.Speak(context.Background(), "v", "hello")
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	// No sleep after the final attempt.
	if len(sleeps) != 2 {
		t.Errorf("sleeps = %v, want 2 entries", sleeps)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	s := &Synthesizer{config: Config{Region: "westeurope"}}
	s.config.defaults()
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing subscription key")
	}

	s.config.SubscriptionKey = "key"
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	s.config.Region = ""
	s.config.Endpoint = ""
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing region and endpoint")
	}
}
