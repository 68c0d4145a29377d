package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/finboard/internal/config"
	"github.com/seenimoa/finboard/internal/datasource"
	"github.com/seenimoa/finboard/internal/llm"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// scripted answers any prompt containing match.
type scripted struct {
	match   string
	content string
	chunks  []llm.StreamChunk
	err     error
}

type scriptedProvider struct {
	mu      sync.Mutex
	replies []scripted
}

func (p *scriptedProvider) Name() string                   { return "scripted" }
func (p *scriptedProvider) Models() []string               { return []string{"scripted"} }
func (p *scriptedProvider) Ping(ctx context.Context) error { return nil }

func (p *scriptedProvider) find(messages []llm.Message) scripted {
	p.mu.Lock()
	defer p.mu.Unlock()
	prompt := messages[len(messages)-1].Content
	for _, r := range p.replies {
		if strings.Contains(prompt, r.match) {
			return r
		}
	}
	return scripted{err: errors.New("scripted: no reply")}
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	r := p.find(messages)
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Content: r.content, Model: opts.Model, Provider: "scripted"}, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	r := p.find(messages)
	if r.err != nil {
		return nil, r.err
	}
	ch := make(chan llm.StreamChunk, len(r.chunks))
	for _, c := range r.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

const (
	matchIndices  = "major US indices"
	matchStock    = "stock overview"
	matchResearch = "What's going on with the markets today"
	matchNews     = "financial news editor"
	matchScreen   = "screen for stocks"
	matchUpdates  = "markets desk editor"
	matchEarnings = "reporting earnings"
	matchSidebar  = "equity sectors"
)

func dashboardReplies() []scripted {
	return []scripted{
		{match: matchIndices, content: `[{"name":"S&P 500","value":"5,100.2","change":"+12.1","percentChange":"+0.24%","isPositive":true}]`},
		{match: matchResearch, content: "Stocks rose."},
		{match: matchNews, content: `[{"title":"Fed holds","source":"model","summary":"Rates unchanged.","publicationDate":"2024-05-06"}]`},
		{match: matchUpdates, content: `[]`},
		{match: matchEarnings, content: `[]`},
		{match: matchSidebar, content: `{"watchlist":[],"sectors":[]}`},
	}
}

func screenChunks() []llm.StreamChunk {
	return []llm.StreamChunk{
		{Thought: "Looking for low P/E "},
		{Thought: "tech names."},
		{Content: "Here are the matches:\n```json\n[{\"companyName\":\"Intel\",\"ticker\":\"INTC\","},
		{Content: "\"explanation\":\"Cheap.\",\"metrics\":[{\"name\":\"P/E\",\"value\":\"9\"}]}]\n```"},
		{Done: true},
	}
}

func testServer(t *testing.T, replies ...scripted) *Server {
	t.Helper()
	provider := &scriptedProvider{replies: replies}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := datasource.NewService(provider, datasource.WithModels("flash", "pro"), datasource.WithLogger(logger))
	agg := datasource.NewAggregator(svc, time.Minute)

	srv := NewServer(&config.Config{}, agg, logger)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-decodes the envelope's Data into v.
func decodeData(t *testing.T, resp APIResponse, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}

			resp := decodeResponse(t, rec)
			if !resp.Success {
				t.Fatal("expected success")
			}
			data, ok := resp.Data.(map[string]interface{})
			if !ok {
				t.Fatalf("data type: %T", resp.Data)
			}
			for _, field := range []string{"status", "version", "market_status", "time_et", "ws_clients"} {
				if _, ok := data[field]; !ok {
					t.Errorf("missing field %q", field)
				}
			}
			if data["status"] != "ok" {
				t.Errorf("status: got %v", data["status"])
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Dashboard
// ════════════════════════════════════════════════════════════════════

func TestHandleDashboard(t *testing.T) {
	srv := testServer(t, dashboardReplies()...)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)

	var bundle struct {
		Indices         []map[string]interface{} `json:"indices"`
		ResearchSummary string                   `json:"researchSummary"`
		News            []map[string]interface{} `json:"news"`
	}
	decodeData(t, resp, &bundle)
	if len(bundle.Indices) != 1 || bundle.Indices[0]["name"] != "S&P 500" {
		t.Errorf("indices: %+v", bundle.Indices)
	}
	if bundle.ResearchSummary != "Stocks rose." {
		t.Errorf("research: %q", bundle.ResearchSummary)
	}
	if len(bundle.News) != 1 || bundle.News[0]["url"] != "#" {
		t.Errorf("news: %+v", bundle.News)
	}
}

func TestHandleDashboard_OneFailureFailsAll(t *testing.T) {
	replies := dashboardReplies()
	replies[4] = scripted{match: matchEarnings, content: "Earnings are unavailable today."}
	srv := testServer(t, replies...)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Success || resp.Data != nil {
		t.Errorf("expected no partial data: %+v", resp)
	}
	if resp.Error != "failed to load dashboard" {
		t.Errorf("error: got %q", resp.Error)
	}
}

// ════════════════════════════════════════════════════════════════════
// Widgets
// ════════════════════════════════════════════════════════════════════

func TestHandleResearch(t *testing.T) {
	srv := testServer(t, scripted{match: matchResearch, content: "   "})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/research", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got ResearchResponse
	decodeData(t, decodeResponse(t, rec), &got)
	if got.Summary != datasource.PlaceholderSummary {
		t.Errorf("summary: got %q, want placeholder", got.Summary)
	}
}

func TestHandleWidgets_BackendDown(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{
		"/api/v1/indices",
		"/api/v1/news",
		"/api/v1/research",
		"/api/v1/updates",
		"/api/v1/earnings",
		"/api/v1/sidebar",
	} {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, path, "")
			if rec.Code != http.StatusBadGateway {
				t.Errorf("status: got %d, want 502", rec.Code)
			}
			if resp := decodeResponse(t, rec); resp.Success || resp.Error == "" {
				t.Errorf("expected error envelope: %+v", resp)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Stock
// ════════════════════════════════════════════════════════════════════

func TestHandleStock(t *testing.T) {
	srv := testServer(t, scripted{match: matchStock, content: `Result: {"companyName":"Apple Inc.","ticker":"AAPL","price":"183.38",
		"analysis":"Solid.","chartData":[{"dateTime":"2024-05-03","price":"183.38"},{"dateTime":"2024-05-02","price":"173.03"}]}`})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/stock/aapl?range=5D", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Ticker    string `json:"ticker"`
		ChartData []struct {
			DateTime string `json:"dateTime"`
		} `json:"chartData"`
	}
	decodeData(t, decodeResponse(t, rec), &got)
	if got.Ticker != "AAPL" {
		t.Errorf("ticker: got %q", got.Ticker)
	}
	if len(got.ChartData) != 2 || got.ChartData[0].DateTime != "2024-05-02" {
		t.Errorf("chart should be sorted ascending: %+v", got.ChartData)
	}
}

func TestHandleStock_Errors(t *testing.T) {
	srv := testServer(t, scripted{match: matchStock, content: "I could not find that company."})

	tests := []struct {
		name   string
		path   string
		status int
		errMsg string
	}{
		{"invalid range", "/api/v1/stock/AAPL?range=7W", http.StatusBadRequest, ""},
		{"blank query", "/api/v1/stock/%20", http.StatusBadRequest, "query is required"},
		{"no json", "/api/v1/stock/ZZZZ", http.StatusBadGateway, "could not interpret response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.status)
			}
			resp := decodeResponse(t, rec)
			if resp.Success {
				t.Error("expected failure")
			}
			if tt.errMsg != "" && resp.Error != tt.errMsg {
				t.Errorf("error: got %q, want %q", resp.Error, tt.errMsg)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Screener
// ════════════════════════════════════════════════════════════════════

func TestHandleScreener(t *testing.T) {
	srv := testServer(t, scripted{match: matchScreen, chunks: screenChunks()})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/screener", `{"query":"cheap tech"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var got ScreenerResponse
	decodeData(t, decodeResponse(t, rec), &got)
	if got.Reasoning != "Looking for low P/E tech names." {
		t.Errorf("reasoning: got %q", got.Reasoning)
	}
	if len(got.Results) != 1 || got.Results[0].Ticker != "INTC" {
		t.Errorf("results: %+v", got.Results)
	}
}

func TestHandleScreener_BadRequests(t *testing.T) {
	srv := testServer(t)

	for name, body := range map[string]string{
		"invalid json": `{not json`,
		"empty query":  `{"query":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/screener", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rec.Code)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Config
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig_MasksKey(t *testing.T) {
	srv := testServer(t)
	srv.cfg.LLM.GeminiKey = "AIzaSyVerySecretValue123"
	srv.cfg.LLM.Model = "gemini-2.5-flash"

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "VerySecret") {
		t.Fatalf("key leaked: %s", body)
	}
	var got config.Config
	decodeData(t, decodeResponse(t, httptestBody(body)), &got)
	if got.LLM.GeminiKey != "AIz...123" || got.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("config: %+v", got.LLM)
	}
	if srv.cfg.LLM.GeminiKey != "AIzaSyVerySecretValue123" {
		t.Error("running config must not be modified")
	}
}

func TestHandleGetConfigKeys(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/config/keys", "")
	var keys []config.KeyStatus
	decodeData(t, decodeResponse(t, rec), &keys)
	if len(keys) != 1 || keys[0].IsSet {
		t.Errorf("keys: %+v", keys)
	}
}

func httptestBody(body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	rec.Body.WriteString(body)
	return rec
}

// ════════════════════════════════════════════════════════════════════
// Error mapping
// ════════════════════════════════════════════════════════════════════

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("x: %w", datasource.ErrInvalidInput), http.StatusBadRequest},
		{"interpret", fmt.Errorf("x: %w", datasource.ErrInterpretResponse), http.StatusBadGateway},
		{"backend", fmt.Errorf("x: %w", datasource.ErrBackendRequest), http.StatusBadGateway},
		{"dashboard", fmt.Errorf("%w: boom", datasource.ErrDashboardLoad), http.StatusBadGateway},
		{"deadline", fmt.Errorf("%w: %w", datasource.ErrBackendRequest, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := fmt.Errorf("%w: %w", datasource.ErrDashboardLoad, errors.New("news: timeout"))
	if got := errorMessage(err); got != "failed to load dashboard" {
		t.Errorf("dashboard: got %q", got)
	}
	err = fmt.Errorf("datasource: stock: %w: %w", datasource.ErrInterpretResponse, errors.New("no JSON"))
	if got := errorMessage(err); got != "could not interpret response" {
		t.Errorf("interpret: got %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// writeJSON / writeError
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, APIResponse{Success: true, Data: map[string]int{"n": 1}})

	if rec.Code != http.StatusCreated {
		t.Errorf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if resp := decodeResponse(t, rec); !resp.Success {
		t.Error("expected success")
	}
}

func TestWriteError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusInternalServerError} {
		rec := httptest.NewRecorder()
		writeError(rec, status, "nope")

		if rec.Code != status {
			t.Errorf("status: got %d, want %d", rec.Code, status)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Error != "nope" || resp.Data != nil {
			t.Errorf("envelope: %+v", resp)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket Hub
// ════════════════════════════════════════════════════════════════════

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSHub_RegisterAndUnregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWSHub()
	go hub.Run(ctx)

	client := NewWSClient(hub)
	if !hub.Register(client) {
		t.Fatal("register failed")
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Unregister(client)
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	select {
	case <-client.Done():
	default:
		t.Error("unregistered client should be closed")
	}
	if client.Send(WSMessage{Type: "x"}) {
		t.Error("send to a closed client should report false")
	}
}

func TestWSHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWSHub()
	go hub.Run(ctx)

	clients := []*WSClient{NewWSClient(hub), NewWSClient(hub)}
	for _, c := range clients {
		hub.Register(c)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Broadcast(WSMessage{Type: "dashboard_refreshed"})
	for i, c := range clients {
		select {
		case msg := <-c.send:
			if msg.Type != "dashboard_refreshed" {
				t.Errorf("client %d: got %q", i, msg.Type)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %d: no message", i)
		}
	}
}

func TestWSHub_DropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWSHub()
	go hub.Run(ctx)

	slow := NewWSClient(hub)
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- WSMessage{Type: "filler"}
	}
	hub.Register(slow)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(WSMessage{Type: "overflow"})
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	<-slow.Done()
}

func TestWSHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewWSHub()
	go hub.Run(ctx)

	client := NewWSClient(hub)
	hub.Register(client)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	<-client.Done()
	if hub.Register(NewWSClient(hub)) {
		t.Error("register after stop should fail")
	}
	hub.Unregister(client) // must not block
}

// ════════════════════════════════════════════════════════════════════
// /ws/screener
// ════════════════════════════════════════════════════════════════════

type wsReply struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialScreener(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/screener"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var r wsReply
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read: %v", err)
	}
	return r
}

func TestScreenerSocket_PingPong(t *testing.T) {
	conn := dialScreener(t, testServer(t))

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatal(err)
	}
	if r := readReply(t, conn); r.Type != "pong" {
		t.Errorf("got %q, want pong", r.Type)
	}
}

func TestScreenerSocket_Screen(t *testing.T) {
	conn := dialScreener(t, testServer(t, scripted{match: matchScreen, chunks: screenChunks()}))

	err := conn.WriteJSON(map[string]interface{}{
		"type": "screen",
		"data": map[string]string{"query": "cheap tech"},
	})
	if err != nil {
		t.Fatal(err)
	}

	started := readReply(t, conn)
	if started.Type != "started" {
		t.Fatalf("first message: got %q", started.Type)
	}
	var s ScreenStarted
	if err := json.Unmarshal(started.Data, &s); err != nil || s.ID == "" || s.Query != "cheap tech" {
		t.Fatalf("started: %s (%v)", started.Data, err)
	}

	var reasoning []string
	for {
		r := readReply(t, conn)
		switch r.Type {
		case "reasoning":
			var m ScreenReasoning
			if err := json.Unmarshal(r.Data, &m); err != nil {
				t.Fatal(err)
			}
			if m.ID != s.ID {
				t.Errorf("reasoning id: got %q, want %q", m.ID, s.ID)
			}
			reasoning = append(reasoning, m.Text)
			continue
		case "results":
			var m ScreenResults
			if err := json.Unmarshal(r.Data, &m); err != nil {
				t.Fatal(err)
			}
			if m.ID != s.ID || len(m.Results) != 1 || m.Results[0].Ticker != "INTC" {
				t.Errorf("results: %+v", m)
			}
		default:
			t.Fatalf("unexpected message %q: %s", r.Type, r.Data)
		}
		break
	}

	if strings.Join(reasoning, "|") != "Looking for low P/E |tech names." {
		t.Errorf("reasoning order: %q", reasoning)
	}
}

func TestScreenerSocket_Errors(t *testing.T) {
	conn := dialScreener(t, testServer(t, scripted{match: matchScreen, chunks: []llm.StreamChunk{{Content: "Nothing matched."}}}))

	// Rejected before starting: no id.
	_ = conn.WriteJSON(map[string]interface{}{"type": "screen", "data": map[string]string{"query": " "}})
	r := readReply(t, conn)
	var failed ScreenFailed
	_ = json.Unmarshal(r.Data, &failed)
	if r.Type != "error" || failed.ID != "" || failed.Error != "query is required" {
		t.Errorf("empty query: %s %s", r.Type, r.Data)
	}

	_ = conn.WriteJSON(map[string]string{"type": "subscribe"})
	if r := readReply(t, conn); r.Type != "error" {
		t.Errorf("unknown type: got %q", r.Type)
	}

	// Started, then failed with the same id.
	_ = conn.WriteJSON(map[string]interface{}{"type": "screen", "data": map[string]string{"query": "anything"}})
	var s ScreenStarted
	if r := readReply(t, conn); r.Type != "started" {
		t.Fatalf("got %q, want started", r.Type)
	} else {
		_ = json.Unmarshal(r.Data, &s)
	}
	r = readReply(t, conn)
	failed = ScreenFailed{}
	_ = json.Unmarshal(r.Data, &failed)
	if r.Type != "error" || failed.ID != s.ID || failed.Error != "could not interpret response" {
		t.Errorf("failed screen: %s %s", r.Type, r.Data)
	}
}

func TestDashboardRefresh_Broadcasts(t *testing.T) {
	srv := testServer(t, dashboardReplies()...)
	conn := dialScreener(t, srv)
	waitFor(t, func() bool { return srv.wsHub.ClientCount() == 1 })

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/dashboard/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	r := readReply(t, conn)
	if r.Type != "dashboard_refreshed" {
		t.Fatalf("got %q", r.Type)
	}
	var ev RefreshEvent
	if err := json.Unmarshal(r.Data, &ev); err != nil || ev.FetchedAt.IsZero() {
		t.Errorf("event: %s (%v)", r.Data, err)
	}
}

func TestServerClose_EndsSessions(t *testing.T) {
	srv := testServer(t)
	conn := dialScreener(t, srv)
	waitFor(t, func() bool { return srv.wsHub.ClientCount() == 1 })

	srv.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected the connection to close")
	}
}
