package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"voxsearch/config"
	"voxsearch/llm"
	"voxsearch/rag"
	"voxsearch/search"
	"voxsearch/session"
	"voxsearch/stt"
)

type fakeSearcher struct {
	fragments []search.Fragment
	searchErr error
	pingErr   error
}

func (f *fakeSearcher) Search(context.Context, string, int) ([]search.Fragment, error) {
	return f.fragments, f.searchErr
}

func (f *fakeSearcher) Ping(context.Context) error { return f.pingErr }

type fakeModel struct{ answer string }

func (f *fakeModel) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return f.answer, nil
}

type fakeTranscriber struct{ text string }

func (f *fakeTranscriber) Transcribe(context.Context, []int16, string) (string, error) {
	return f.text, nil
}

func testLogger() *log.Logger {
	logger := log.New(os.Stderr)
	logger.SetLevel(log.FatalLevel)
	return logger
}

func newTestServer(searcher *fakeSearcher) *Server {
	logger := testLogger()
	return &Server{
		Logger:   logger,
		Store:    session.NewMemoryStore(),
		Settings: config.NewManager(nil),
		Answerer: rag.NewAnswerer(searcher, &fakeModel{answer: "the answer"}, 2, logger),
		Searcher: searcher,
		NewTranscriber: func(config.Settings) stt.Transcriber {
			return &fakeTranscriber{text: "spoken question"}
		},
		ICE: StaticICE{},
	}
}

func TestAskAppendsConversation(t *testing.T) {
	s := newTestServer(&fakeSearcher{fragments: []search.Fragment{{Content: "doc"}}})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	client := ts.Client()
	jar := newCookieClient(t, client)

	resp := postJSON(t, jar, ts.URL+"/api/ask", `{"question":"what is a stage?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask returned %d", resp.StatusCode)
	}
	var ask askResponse
	json.NewDecoder(resp.Body).Decode(&ask)
	resp.Body.Close()

	if ask.Answer.Content != "the answer" {
		t.Errorf("answer %q", ask.Answer.Content)
	}

	history := getHistory(t, jar, ts.URL)
	if len(history) != 2 {
		t.Fatalf("history length %d, want 2", len(history))
	}
	if history[0].Role != session.RoleUser || history[1].Role != session.RoleAssistant {
		t.Errorf("history roles wrong: %+v", history)
	}
}

func TestAskZeroResultsShowsNoResults(t *testing.T) {
	s := newTestServer(&fakeSearcher{}) // zero fragments
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	jar := newCookieClient(t, ts.Client())

	resp := postJSON(t, jar, ts.URL+"/api/ask", `{"question":"anything"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("zero results must not fail the request: %d", resp.StatusCode)
	}
	var ask askResponse
	json.NewDecoder(resp.Body).Decode(&ask)
	resp.Body.Close()

	if ask.Answer.Meta != "no results" {
		t.Errorf("meta %q, want explicit no-results state", ask.Answer.Meta)
	}
}

func TestAskSearchFailureDegrades(t *testing.T) {
	s := newTestServer(&fakeSearcher{searchErr: errors.New("down")})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	jar := newCookieClient(t, ts.Client())

	resp := postJSON(t, jar, ts.URL+"/api/ask", `{"question":"anything"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search failure must degrade, not error: %d", resp.StatusCode)
	}
	var ask askResponse
	json.NewDecoder(resp.Body).Decode(&ask)
	resp.Body.Close()

	if !strings.Contains(ask.Answer.Meta, "search error") {
		t.Errorf("meta %q, want search-error indicator", ask.Answer.Meta)
	}
}

func TestClearEmptiesHistory(t *testing.T) {
	s := newTestServer(&fakeSearcher{fragments: []search.Fragment{{Content: "doc"}}})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	jar := newCookieClient(t, ts.Client())

	postJSON(t, jar, ts.URL+"/api/ask", `{"question":"q"}`).Body.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/clear", nil)
	resp, err := jar.Do(req)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear returned %d", resp.StatusCode)
	}

	if history := getHistory(t, jar, ts.URL); len(history) != 0 {
		t.Errorf("history has %d messages after clear", len(history))
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	jar := newCookieClient(t, ts.Client())

	resp := postJSON(t, jar, ts.URL+"/api/settings",
		`{"chunk_duration_seconds":5,"model_size":"small","language":"de","search_limit":3,"answer_model":"openai","auto_search":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings update returned %d", resp.StatusCode)
	}
	resp.Body.Close()

	got, err := jar.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	var p settingsPayload
	json.NewDecoder(got.Body).Decode(&p)
	got.Body.Close()

	if p.ChunkDurationSeconds != 5 || p.ModelSize != "small" || p.Language != "de" || p.AutoSearch {
		t.Errorf("settings not applied: %+v", p)
	}
}

func TestSettingsRejectsInvalid(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()
	jar := newCookieClient(t, ts.Client())

	resp := postJSON(t, jar, ts.URL+"/api/settings",
		`{"chunk_duration_seconds":3,"model_size":"enormous","answer_model":"openai"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid model size returned %d, want 400", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name      string
		pingErr   error
		connected bool
	}{
		{"connected", nil, true},
		{"unreachable", errors.New("refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeSearcher{pingErr: tt.pingErr})
			ts := httptest.NewServer(s.Router())
			defer ts.Close()

			resp, err := http.Get(ts.URL + "/api/status")
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			var st statusResponse
			json.NewDecoder(resp.Body).Decode(&st)
			resp.Body.Close()

			if st.Connected != tt.connected {
				t.Errorf("connected = %v, want %v", st.Connected, tt.connected)
			}
		})
	}
}

func TestICEFallback(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/ice")
	if err != nil {
		t.Fatalf("ice: %v", err)
	}
	var body struct {
		ICEServers []ICEServer `json:"iceServers"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()

	if len(body.ICEServers) != 1 || body.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("ice servers %+v, want Google STUN fallback", body.ICEServers)
	}
}

func TestIndexRenders(t *testing.T) {
	s := newTestServer(&fakeSearcher{})
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("index returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type %q", ct)
	}
}

// cookieClient keeps the session cookie across requests.
type cookieClient struct {
	t      *testing.T
	client *http.Client
	cookie *http.Cookie
}

func newCookieClient(t *testing.T, client *http.Client) *cookieClient {
	return &cookieClient{t: t, client: client}
}

func (c *cookieClient) Do(req *http.Request) (*http.Response, error) {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := c.client.Do(req)
	if err == nil && c.cookie == nil {
		for _, ck := range resp.Cookies() {
			if ck.Name == sessionCookie {
				c.cookie = ck
			}
		}
	}
	return resp, err
}

func (c *cookieClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func postJSON(t *testing.T, c *cookieClient, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func getHistory(t *testing.T, c *cookieClient, baseURL string) []session.Message {
	t.Helper()
	resp, err := c.Get(baseURL + "/api/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer resp.Body.Close()
	var history []session.Message
	json.NewDecoder(resp.Body).Decode(&history)
	return history
}
