package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/lazypower/erosion/internal/auction"
	"github.com/lazypower/erosion/internal/auth"
	"github.com/lazypower/erosion/internal/engine"
	"github.com/lazypower/erosion/internal/generation"
	"github.com/lazypower/erosion/internal/proof"
	"github.com/lazypower/erosion/internal/store"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	dave  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

type testEnv struct {
	srv   *Server
	clock *clock.Mock
	tree  *proof.Tree
}

func testServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock := clock.NewMock()
	mock.Set(time.Unix(1_700_000_000, 0))

	curve, err := auction.NewCurve("10", "0.5", "1")
	if err != nil {
		t.Fatalf("NewCurve: %v", err)
	}
	tree := proof.NewTree([]common.Address{alice, bob})
	eng, err := engine.Bootstrap(db, &auth.Owner{Address: owner}, engine.Params{
		Name:   "Knowledge",
		Symbol: "KNOW",
		Curve:  curve,
		Genesis: generation.Config{
			Epoch: 1, Capacity: 100, DecayRate: 604800, ProofRoot: tree.Root(),
		},
	}, engine.WithClock(mock))
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return &testEnv{srv: New(eng, "test-version", zerolog.Nop()), clock: mock, tree: tree}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func (e *testEnv) claim(t *testing.T, addr common.Address) *httptest.ResponseRecorder {
	t.Helper()
	p, err := e.tree.Proof(addr)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	hexes := make([]string, len(p))
	for i, h := range p {
		hexes[i] = h.Hex()
	}
	return e.do(t, "POST", "/api/claim", map[string]any{"address": addr.Hex(), "proof": hexes})
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.do(t, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestCommunityEndpoint(t *testing.T) {
	env := testServer(t)

	body := decode(t, env.do(t, "GET", "/api/community", nil))
	if body["symbol"] != "KNOW" {
		t.Errorf("symbol = %v, want KNOW", body["symbol"])
	}
	if body["decay_constant"] != "0.5" {
		t.Errorf("decay_constant = %v, want 0.5", body["decay_constant"])
	}
	if body["current_epoch"] != float64(1) {
		t.Errorf("current_epoch = %v, want 1", body["current_epoch"])
	}
}

func TestClaimAndBalance(t *testing.T) {
	env := testServer(t)

	w := env.claim(t, alice)
	if w.Code != http.StatusOK {
		t.Fatalf("claim status = %d: %s", w.Code, w.Body.String())
	}

	body := decode(t, env.do(t, "GET", "/api/balances/"+alice.Hex(), nil))
	if body["balance"] != float64(100) {
		t.Errorf("balance = %v, want 100", body["balance"])
	}

	body = decode(t, env.do(t, "GET", "/api/members/1/"+alice.Hex(), nil))
	if body["state"] != "alive" {
		t.Errorf("state = %v, want alive", body["state"])
	}
	if body["last_settled"] != float64(1_700_000_000) {
		t.Errorf("last_settled = %v", body["last_settled"])
	}

	body = decode(t, env.do(t, "GET", "/api/members/1/"+alice.Hex()+"?balance=3&required=4", nil))
	if body["effective_state"] != "dead" {
		t.Errorf("effective_state = %v, want dead", body["effective_state"])
	}

	w = env.claim(t, alice)
	if w.Code != http.StatusConflict {
		t.Fatalf("second claim status = %d, want %d", w.Code, http.StatusConflict)
	}
	if code := decode(t, w)["code"]; code != "already_admitted" {
		t.Errorf("code = %v, want already_admitted", code)
	}
}

func TestTransferShard(t *testing.T) {
	env := testServer(t)
	env.claim(t, alice)
	env.clock.Add(2 * time.Second)

	body := decode(t, env.do(t, "GET", "/api/erosion?amount=1", nil))
	if body["cost"] != float64(4) {
		t.Errorf("quoted cost = %v, want 4", body["cost"])
	}

	w := env.do(t, "POST", "/api/transfer", map[string]any{"from": alice.Hex(), "to": dave.Hex(), "amount": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("transfer status = %d: %s", w.Code, w.Body.String())
	}
	body = decode(t, w)
	if body["kind"] != "shard" || body["born"] != true {
		t.Errorf("receipt = %v", body)
	}
	if body["recipient_balance"] != float64(101) {
		t.Errorf("recipient_balance = %v, want 101", body["recipient_balance"])
	}
	if body["recipient_state"] != "alive" {
		t.Errorf("recipient_state = %v, want alive", body["recipient_state"])
	}

	w = env.do(t, "GET", "/api/events?limit=4", nil)
	var events []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[0]["kind"] != "mint" {
		t.Errorf("newest event = %v, want mint", events[0]["kind"])
	}
}

func TestTransferRejections(t *testing.T) {
	env := testServer(t)
	env.claim(t, alice)
	env.claim(t, bob)
	env.clock.Add(time.Hour)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"bad amount", map[string]any{"from": alice.Hex(), "to": dave.Hex(), "amount": 7}, http.StatusBadRequest, "invalid_transfer_amount"},
		{"self", map[string]any{"from": alice.Hex(), "to": alice.Hex(), "amount": 100}, http.StatusBadRequest, "invalid_recipient"},
		{"bad address", map[string]any{"from": "alice", "to": dave.Hex(), "amount": 1}, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/transfer", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if code := decode(t, w)["code"]; code != tt.code {
				t.Errorf("code = %v, want %s", code, tt.code)
			}
		})
	}

	// Full exit kills alice; she can no longer receive.
	w := env.do(t, "POST", "/api/transfer", map[string]any{"from": alice.Hex(), "to": bob.Hex(), "amount": 100})
	if w.Code != http.StatusOK {
		t.Fatalf("exit status = %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, "POST", "/api/transfer", map[string]any{"from": bob.Hex(), "to": alice.Hex(), "amount": 200})
	if w.Code != http.StatusConflict {
		t.Fatalf("carcass status = %d, want %d", w.Code, http.StatusConflict)
	}
	if code := decode(t, w)["code"]; code != "recipient_is_dead" {
		t.Errorf("code = %v, want recipient_is_dead", code)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	env := testServer(t)
	env.claim(t, alice)
	env.clock.Add(time.Hour)

	w := env.do(t, "POST", "/api/approve", map[string]any{"owner": alice.Hex(), "spender": bob.Hex(), "amount": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", w.Code, w.Body.String())
	}

	req := map[string]any{"spender": bob.Hex(), "from": alice.Hex(), "to": dave.Hex(), "amount": 1}
	if w := env.do(t, "POST", "/api/transfer-from", req); w.Code != http.StatusOK {
		t.Fatalf("transfer-from status = %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, "POST", "/api/transfer-from", req)
	if w.Code != http.StatusConflict {
		t.Fatalf("second transfer-from status = %d, want %d", w.Code, http.StatusConflict)
	}

	body := decode(t, env.do(t, "GET", "/api/allowances/"+alice.Hex()+"/"+bob.Hex(), nil))
	if body["amount"] != float64(0) {
		t.Errorf("allowance = %v, want 0", body["amount"])
	}
}

func TestSetGeneration(t *testing.T) {
	env := testServer(t)

	gen := map[string]any{"caller": alice.Hex(), "epoch": 2, "capacity": 10, "decay_rate": 60}
	if w := env.do(t, "POST", "/api/generations", gen); w.Code != http.StatusForbidden {
		t.Fatalf("unauthorized status = %d, want %d", w.Code, http.StatusForbidden)
	}

	gen["caller"] = owner.Hex()
	gen["decay_rate"] = 0
	if w := env.do(t, "POST", "/api/generations", gen); w.Code != http.StatusBadRequest {
		t.Fatalf("zero decay status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	packed := map[string]any{"caller": owner.Hex(), "epoch": 2, "packed": generation.Pack(1_000_000_000, 86, 1).Text(16)}
	if w := env.do(t, "POST", "/api/generations", packed); w.Code != http.StatusCreated {
		t.Fatalf("set status = %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, "POST", "/api/generations", packed); w.Code != http.StatusConflict {
		t.Fatalf("repeat status = %d, want %d", w.Code, http.StatusConflict)
	}

	body := decode(t, env.do(t, "GET", "/api/generations/2", nil))
	if body["capacity"] != float64(1_000_000_000) || body["decay_rate"] != float64(86) || body["base_loss_rate"] != float64(1) {
		t.Errorf("generation = %v", body)
	}

	if w := env.do(t, "GET", "/api/generations/9", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown epoch status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := env.do(t, "GET", "/api/generations/x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad epoch status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)
	env.claim(t, alice)

	w := env.do(t, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	for _, name := range []string{"erosion_claims_total 1", "erosion_current_epoch 1", "erosion_knowledge_minted_total 100"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("metrics missing %q", name)
		}
	}
}
