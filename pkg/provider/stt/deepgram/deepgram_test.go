package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/dictanote/pkg/provider/stt"
	"github.com/coder/websocket"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en-US", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "interim_results", "true", q.Get("interim_results"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
	if _, ok := q["endpointing"]; ok {
		t.Error("endpointing should be omitted by default")
	}
}

func TestBuildURL_Options(t *testing.T) {
	p, err := New("key",
		WithModel("base"),
		WithLanguage("de-DE"),
		WithSampleRate(48000),
		WithEndpointing(300),
		WithEndpoint("ws://localhost:9999/v1/listen"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "host", "localhost:9999", u.Host)
	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
	assertEqual(t, "sample_rate", "48000", q.Get("sample_rate"))
	assertEqual(t, "endpointing", "300", q.Get("endpointing"))
}

func TestBuildURL_LanguageOverriddenByCfg(t *testing.T) {
	p, err := New("key", WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{Language: "fr-FR", SampleRate: 16000})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	assertEqual(t, "language", "fr-FR", u.Query().Get("language"))
}

// ---- JSON parsing tests ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": true,
		"start": 1.5,
		"duration": 0.9,
		"channel": {
			"alternatives": [{
				"transcript": "turn off the lights",
				"confidence": 0.95,
				"words": [
					{"word": "turn", "start": 1.5, "end": 1.7, "confidence": 0.97},
					{"word": "off", "start": 1.7, "end": 1.9, "confidence": 0.93}
				]
			}]
		}
	}`)

	tr, ok := parseDeepgramResponse(raw)
	if !ok {
		t.Fatal("expected ok=true for valid Results message")
	}
	if !tr.IsFinal {
		t.Error("expected IsFinal=true")
	}
	assertEqual(t, "text", "turn off the lights", tr.Text)
	if tr.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", tr.Confidence)
	}
	if tr.Timestamp != 1500*time.Millisecond {
		t.Errorf("timestamp: got %v, want 1.5s", tr.Timestamp)
	}
	if len(tr.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(tr.Words))
	}
	assertEqual(t, "word[1]", "off", tr.Words[1].Word)
}

func TestParseDeepgramResponse_Ignored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"metadata", `{"type":"Metadata","request_id":"abc"}`},
		{"empty alternatives", `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`},
		{"invalid json", `{invalid`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseDeepgramResponse([]byte(tt.raw)); ok {
				t.Errorf("expected ok=false for %s", tt.raw)
			}
		})
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
	if p.sampleRate != defaultSampleRate {
		t.Errorf("expected sampleRate %d, got %d", defaultSampleRate, p.sampleRate)
	}
}

// ---- Live session tests against a local WebSocket server ----

func TestStartStream_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoint(srv.URL))
	_, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if !errors.Is(err, stt.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStartStream_NoSpeechClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token key" {
			t.Errorf("Authorization header: got %q", got)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		ctx := r.Context()
		final := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello world","confidence":0.9}]}}`
		partial := `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel","confidence":0.4}]}}`
		_ = conn.Write(ctx, websocket.MessageText, []byte(partial))
		_ = conn.Write(ctx, websocket.MessageText, []byte(final))
		conn.Close(websocket.StatusInternalError, "Deepgram did not receive audio data. "+noAudioReason)
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoint(srv.URL))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	var finals []string
	for tr := range h.Finals() {
		finals = append(finals, tr.Text)
	}
	for range h.Partials() {
	}

	if len(finals) != 1 || finals[0] != "hello world" {
		t.Errorf("finals: got %v, want [hello world]", finals)
	}
	if !errors.Is(h.Err(), stt.ErrNoSpeech) {
		t.Errorf("Err: got %v, want ErrNoSpeech", h.Err())
	}
}

func TestSession_CloseIsClean(t *testing.T) {
	received := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for {
			typ, msg, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if typ == websocket.MessageText {
				received <- string(msg)
				if strings.Contains(string(msg), "CloseStream") {
					conn.Close(websocket.StatusNormalClosure, "")
					return
				}
			}
		}
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoint(srv.URL))
	h, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := h.SendAudio(make([]byte, 320)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if h.Err() != nil {
		t.Errorf("Err after Close: got %v, want nil", h.Err())
	}
	if err := h.SendAudio([]byte{0}); !errors.Is(err, stt.ErrSessionClosed) {
		t.Errorf("SendAudio after Close: got %v, want ErrSessionClosed", err)
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
