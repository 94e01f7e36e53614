package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/lazypower/erosion/internal/generation"
	"github.com/lazypower/erosion/internal/proof"
	"github.com/lazypower/erosion/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	a, ok := parseAddress(chi.URLParam(r, name))
	if !ok {
		badRequest(w, name+" must be a hex address")
	}
	return a, ok
}

func epochParam(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "epoch"), 10, 32)
	if err != nil {
		badRequest(w, "epoch must be an unsigned 32-bit integer")
		return 0, false
	}
	return uint32(n), true
}

type generationView struct {
	Epoch        uint32 `json:"epoch"`
	Capacity     uint32 `json:"capacity"`
	DecayRate    uint32 `json:"decay_rate"`
	BaseLossRate uint32 `json:"base_loss_rate"`
	Packed       string `json:"packed"`
	ProofRoot    string `json:"proof_root"`
}

func viewGeneration(g generation.Config) generationView {
	return generationView{
		Epoch:        g.Epoch,
		Capacity:     g.Capacity,
		DecayRate:    g.DecayRate,
		BaseLossRate: g.BaseLossRate,
		Packed:       g.PackedHex(),
		ProofRoot:    g.ProofRoot.Hex(),
	}
}

func (s *Server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Info()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":           info.Name,
		"symbol":         info.Symbol,
		"initial_price":  info.InitialPrice.String(),
		"decay_constant": info.DecayConstant.String(),
		"emission_rate":  info.EmissionRate.String(),
		"latest_birth":   info.LatestBirth.String(),
		"current_epoch":  info.CurrentEpoch,
		"total_supply":   info.TotalSupply,
		"now":            info.Now,
	})
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	gens, err := s.engine.Generations()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]generationView, 0, len(gens))
	for _, g := range gens {
		out = append(out, viewGeneration(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetGeneration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller       string `json:"caller"`
		Epoch        uint32 `json:"epoch"`
		Capacity     uint32 `json:"capacity"`
		DecayRate    uint32 `json:"decay_rate"`
		BaseLossRate uint32 `json:"base_loss_rate"`
		Packed       string `json:"packed"`
		ProofRoot    string `json:"proof_root"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		badRequest(w, "caller must be a hex address")
		return
	}

	g := generation.Config{
		Epoch:        req.Epoch,
		Capacity:     req.Capacity,
		DecayRate:    req.DecayRate,
		BaseLossRate: req.BaseLossRate,
	}
	if req.Packed != "" {
		c, d, l, err := generation.ParsePacked(req.Packed)
		if err != nil {
			badRequest(w, "packed: "+err.Error())
			return
		}
		g.Capacity, g.DecayRate, g.BaseLossRate = c, d, l
	}
	if req.ProofRoot != "" {
		root, err := proof.ParseHash(req.ProofRoot)
		if err != nil {
			badRequest(w, "proof_root: "+err.Error())
			return
		}
		g.ProofRoot = root
	}

	opID, err := s.engine.SetGeneration(caller, g)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"op_id":      opID,
		"generation": viewGeneration(g),
	})
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	epoch, ok := epochParam(w, r)
	if !ok {
		return
	}
	g, err := s.engine.Generation(epoch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewGeneration(g))
}

// handleGetMember returns the stored record. With ?balance=&required= it
// also reports the balance-aware state.
func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	epoch, ok := epochParam(w, r)
	if !ok {
		return
	}
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	rec, err := s.engine.Member(epoch, addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := map[string]any{
		"epoch":        epoch,
		"address":      addr.Hex(),
		"state":        rec.State,
		"last_settled": rec.LastSettled,
	}

	q := r.URL.Query()
	if q.Get("balance") != "" || q.Get("required") != "" {
		balance, err1 := strconv.ParseUint(q.Get("balance"), 10, 64)
		required, err2 := strconv.ParseUint(q.Get("required"), 10, 64)
		if err1 != nil || err2 != nil {
			badRequest(w, "balance and required must both be unsigned integers")
			return
		}
		st, err := s.engine.StateAt(epoch, addr, balance, required)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out["effective_state"] = st
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	bal, err := s.engine.BalanceOf(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	decay, err := s.engine.KnowledgeDecay(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var remaining uint64
	if bal >= decay {
		remaining = bal - decay
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":   addr.Hex(),
		"balance":   bal,
		"decay":     decay,
		"remaining": remaining,
		"perished":  bal < decay,
	})
}

func (s *Server) handleGetDecay(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	decay, err := s.engine.KnowledgeDecay(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr.Hex(), "decay": decay})
}

func (s *Server) handleGetErosion(w http.ResponseWriter, r *http.Request) {
	amount := uint64(1)
	if a := r.URL.Query().Get("amount"); a != "" {
		n, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			badRequest(w, "amount must be an unsigned integer")
			return
		}
		amount = n
	}
	cost, err := s.engine.KnowledgeErosion(amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": amount, "cost": cost})
}

func (s *Server) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	owner, ok := addressParam(w, r, "owner")
	if !ok {
		return
	}
	spender, ok := addressParam(w, r, "spender")
	if !ok {
		return
	}
	a, err := s.engine.Allowance(owner, spender)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner.Hex(), "spender": spender.Hex(), "amount": a})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string   `json:"address"`
		Proof   []string `json:"proof"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	addr, ok := parseAddress(req.Address)
	if !ok {
		badRequest(w, "address must be a hex address")
		return
	}
	p, err := proof.ParseProof(req.Proof)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	rcpt, err := s.engine.Claim(addr, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

type transferRequest struct {
	Spender string `json:"spender"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  uint64 `json:"amount"`
}

func (s *Server) decodeTransfer(w http.ResponseWriter, r *http.Request, withSpender bool) (transferRequest, common.Address, common.Address, common.Address, bool) {
	var req transferRequest
	var spender, from, to common.Address
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return req, spender, from, to, false
	}
	var ok bool
	if withSpender {
		if spender, ok = parseAddress(req.Spender); !ok {
			badRequest(w, "spender must be a hex address")
			return req, spender, from, to, false
		}
	}
	if from, ok = parseAddress(req.From); !ok {
		badRequest(w, "from must be a hex address")
		return req, spender, from, to, false
	}
	if to, ok = parseAddress(req.To); !ok {
		badRequest(w, "to must be a hex address")
		return req, spender, from, to, false
	}
	return req, spender, from, to, true
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	req, _, from, to, ok := s.decodeTransfer(w, r, false)
	if !ok {
		return
	}
	rcpt, err := s.engine.Transfer(from, to, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	req, spender, from, to, ok := s.decodeTransfer(w, r, true)
	if !ok {
		return
	}
	rcpt, err := s.engine.TransferFrom(spender, from, to, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	owner, ok := parseAddress(req.Owner)
	if !ok {
		badRequest(w, "owner must be a hex address")
		return
	}
	spender, ok := parseAddress(req.Spender)
	if !ok {
		badRequest(w, "spender must be a hex address")
		return
	}

	opID, err := s.engine.Approve(owner, spender, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"op_id":   opID,
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"amount":  req.Amount,
	})
}

type eventView struct {
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

func viewEvent(e store.Event) eventView {
	v := eventView{
		ID:        e.ID,
		OpID:      e.OpID,
		Kind:      e.Kind,
		Epoch:     e.Epoch,
		From:      e.From,
		To:        e.To,
		Amount:    e.Amount,
		CreatedAt: e.CreatedAt,
	}
	if e.Detail != "" && json.Valid([]byte(e.Detail)) {
		v.Detail = json.RawMessage(e.Detail)
	}
	return v
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	var events []store.Event
	var err error
	if op := r.URL.Query().Get("op"); op != "" {
		events, err = s.engine.DB.GetOperationEvents(op)
	} else {
		events, err = s.engine.DB.GetRecentEvents(limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, viewEvent(e))
	}
	writeJSON(w, http.StatusOK, out)
}
