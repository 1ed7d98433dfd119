package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"moxxy-bridge/internal/browser"
	"moxxy-bridge/internal/config"
	"moxxy-bridge/internal/engine"
	"moxxy-bridge/internal/snapshot"
)

// quietPage is the minimal live page the bridge tests need: evaluate works,
// everything else stays inert.
type quietPage struct {
	evalDelay time.Duration
}

func (p *quietPage) Navigate(string, time.Duration) error       { return nil }
func (p *quietPage) Back(time.Duration) error                   { return nil }
func (p *quietPage) Forward(time.Duration) error                { return nil }
func (p *quietPage) Title() (string, error)                     { return "Quiet", nil }
func (p *quietPage) URL() string                                { return "https://quiet.test/" }
func (p *quietPage) AXTree() (*snapshot.Node, error)            { return nil, nil }
func (p *quietPage) TypeText(string) error                      { return nil }
func (p *quietPage) Screenshot() ([]byte, error)                { return nil, nil }
func (p *quietPage) Close() error                               { return nil }
func (p *quietPage) ElementsByRole(string, string, bool) ([]browser.Element, error) {
	return nil, nil
}

func (p *quietPage) Eval(js string) (string, error) {
	if p.evalDelay > 0 {
		time.Sleep(p.evalDelay)
	}
	return "7", nil
}

type quietDriver struct {
	page *quietPage
}

func (d *quietDriver) Start(context.Context) error                 { return nil }
func (d *quietDriver) NewPage(context.Context) (browser.Page, error) { return d.page, nil }
func (d *quietDriver) Close() error                                { return nil }

func newTestServer(t *testing.T, cfg config.ServerConfig, page *quietPage) *Server {
	t.Helper()
	eng := engine.New(browser.NewSession(&quietDriver{page: page}), engine.DefaultTimeouts())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)
	return NewServer(cfg, eng)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, engine.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp engine.Response
	if rec.Code == http.StatusOK || rec.Code == http.StatusBadRequest {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHealthRespondsBeforeAnyBrowser(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Port: 0}, &quietPage{})

	rec, _ := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestRouting(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Port: 0}, &quietPage{})

	tests := []struct {
		method, path string
		wantCode     int
	}{
		{http.MethodPost, "/health", http.StatusNotFound},
		{http.MethodGet, "/action", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodGet, "/", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantCode)
		}
	}
}

func TestActionMalformedJSON(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Port: 0}, &quietPage{})

	rec, resp := doJSON(t, srv, http.MethodPost, "/action", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Success || !strings.HasPrefix(resp.Error, "Invalid JSON: ") {
		t.Errorf("response = %+v", resp)
	}
}

func TestActionValidationFailureIsHTTP200(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Port: 0}, &quietPage{})

	rec, resp := doJSON(t, srv, http.MethodPost, "/action", `{"action":"teleport","args":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Success || !strings.HasPrefix(resp.Error, "Unknown action: teleport.") {
		t.Errorf("response = %+v", resp)
	}

	rec, resp = doJSON(t, srv, http.MethodPost, "/action", `{"action":"click","args":[]}`)
	if rec.Code != http.StatusOK || resp.Success || resp.Error != "click requires a ref number" {
		t.Errorf("status = %d, response = %+v", rec.Code, resp)
	}
}

func TestActionRoundTrip(t *testing.T) {
	srv := newTestServer(t, config.ServerConfig{Port: 0}, &quietPage{})

	rec, resp := doJSON(t, srv, http.MethodPost, "/action", `{"action":"evaluate","args":["3+4"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !resp.Success || resp.Result != "7" {
		t.Errorf("response = %+v", resp)
	}
}

func TestActionOuterTimeout(t *testing.T) {
	page := &quietPage{evalDelay: 200 * time.Millisecond}
	srv := newTestServer(t, config.ServerConfig{Port: 0, RequestTimeout: "20ms"}, page)

	rec, resp := doJSON(t, srv, http.MethodPost, "/action", `{"action":"evaluate","args":["slow()"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Success || !strings.HasPrefix(resp.Error, "Execution error: ") {
		t.Errorf("response = %+v", resp)
	}
}
