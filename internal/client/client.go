// Package client talks to a running erosion server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/erosion/internal/engine"
)

const (
	DefaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 5 * time.Second
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Client talks to the erosion server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates a new HTTP client.
// Respects EROSION_URL env var, falls back to http://127.0.0.1:37778.
func NewClient() *Client {
	u := os.Getenv("EROSION_URL")
	if u == "" {
		u = DefaultServerURL
	}
	return New(u)
}

// New creates a client for the server at serverURL.
func New(serverURL string) *Client {
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Community is the /api/community response.
type Community struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	InitialPrice  string `json:"initial_price"`
	DecayConstant string `json:"decay_constant"`
	EmissionRate  string `json:"emission_rate"`
	LatestBirth   string `json:"latest_birth"`
	CurrentEpoch  uint32 `json:"current_epoch"`
	TotalSupply   uint64 `json:"total_supply"`
	Now           uint64 `json:"now"`
}

func (c *Client) Community() (Community, error) {
	var out Community
	return out, c.do(http.MethodGet, "/api/community", nil, &out)
}

// Generation is one generation config as served.
type Generation struct {
	Epoch        uint32 `json:"epoch"`
	Capacity     uint32 `json:"capacity"`
	DecayRate    uint32 `json:"decay_rate"`
	BaseLossRate uint32 `json:"base_loss_rate"`
	Packed       string `json:"packed,omitempty"`
	ProofRoot    string `json:"proof_root,omitempty"`
}

// GenerationRequest sets a new generation. Packed overrides the three
// structured fields when non-empty.
type GenerationRequest struct {
	Caller string `json:"caller"`
	Generation
}

func (c *Client) SetGeneration(req GenerationRequest) (string, error) {
	var out struct {
		OpID string `json:"op_id"`
	}
	err := c.do(http.MethodPost, "/api/generations", req, &out)
	return out.OpID, err
}

func (c *Client) Generation(epoch uint32) (Generation, error) {
	var out Generation
	return out, c.do(http.MethodGet, "/api/generations/"+strconv.FormatUint(uint64(epoch), 10), nil, &out)
}

func (c *Client) Generations() ([]Generation, error) {
	var out []Generation
	return out, c.do(http.MethodGet, "/api/generations", nil, &out)
}

// Member is the stored record of an address in an epoch.
type Member struct {
	Epoch          uint32 `json:"epoch"`
	Address        string `json:"address"`
	State          string `json:"state"`
	LastSettled    uint64 `json:"last_settled"`
	EffectiveState string `json:"effective_state,omitempty"`
}

func (c *Client) Member(epoch uint32, addr common.Address) (Member, error) {
	var out Member
	path := fmt.Sprintf("/api/members/%d/%s", epoch, addr.Hex())
	return out, c.do(http.MethodGet, path, nil, &out)
}

// Balance is an address's stored balance and pending decay.
type Balance struct {
	Address   string `json:"address"`
	Balance   uint64 `json:"balance"`
	Decay     uint64 `json:"decay"`
	Remaining uint64 `json:"remaining"`
	Perished  bool   `json:"perished"`
}

func (c *Client) Balance(addr common.Address) (Balance, error) {
	var out Balance
	return out, c.do(http.MethodGet, "/api/balances/"+addr.Hex(), nil, &out)
}

func (c *Client) Decay(addr common.Address) (uint64, error) {
	var out struct {
		Decay uint64 `json:"decay"`
	}
	err := c.do(http.MethodGet, "/api/decay/"+addr.Hex(), nil, &out)
	return out.Decay, err
}

func (c *Client) Erosion(amount uint64) (uint64, error) {
	var out struct {
		Cost uint64 `json:"cost"`
	}
	path := "/api/erosion?amount=" + url.QueryEscape(strconv.FormatUint(amount, 10))
	err := c.do(http.MethodGet, path, nil, &out)
	return out.Cost, err
}

func (c *Client) Claim(addr common.Address, proof []common.Hash) (engine.ClaimReceipt, error) {
	hexes := make([]string, len(proof))
	for i, h := range proof {
		hexes[i] = h.Hex()
	}
	var out engine.ClaimReceipt
	err := c.do(http.MethodPost, "/api/claim", map[string]any{"address": addr.Hex(), "proof": hexes}, &out)
	return out, err
}

func (c *Client) Transfer(from, to common.Address, amount uint64) (engine.Receipt, error) {
	var out engine.Receipt
	err := c.do(http.MethodPost, "/api/transfer", map[string]any{
		"from": from.Hex(), "to": to.Hex(), "amount": amount,
	}, &out)
	return out, err
}

func (c *Client) TransferFrom(spender, from, to common.Address, amount uint64) (engine.Receipt, error) {
	var out engine.Receipt
	err := c.do(http.MethodPost, "/api/transfer-from", map[string]any{
		"spender": spender.Hex(), "from": from.Hex(), "to": to.Hex(), "amount": amount,
	}, &out)
	return out, err
}

func (c *Client) Approve(owner, spender common.Address, amount uint64) (string, error) {
	var out struct {
		OpID string `json:"op_id"`
	}
	err := c.do(http.MethodPost, "/api/approve", map[string]any{
		"owner": owner.Hex(), "spender": spender.Hex(), "amount": amount,
	}, &out)
	return out.OpID, err
}

// Event is one entry of the operation log.
type Event struct {
	ID        int64           `json:"id"`
	OpID      string          `json:"op_id"`
	Kind      string          `json:"kind"`
	Epoch     uint32          `json:"epoch"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Amount    uint64          `json:"amount"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

func (c *Client) Events(limit int) ([]Event, error) {
	var out []Event
	return out, c.do(http.MethodGet, "/api/events?limit="+strconv.Itoa(limit), nil, &out)
}
