package controller

import (
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/poknet/pokengine/pkg/governance"
	"github.com/poknet/pokengine/pkg/treasury"
)

type createProposalRequest struct {
	Proposer    string          `json:"proposer"`
	Type        governance.Type `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	TargetKey   string          `json:"target_key,omitempty"`
	TargetValue int64           `json:"target_value,omitempty"`
	Deposit     uint64          `json:"deposit"`
}

func (c *Controller) HandleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Proposer == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "missing proposer or title")
		return
	}

	now := c.App.Now()

	// Escrow the deposit in the governance pool before the proposal exists so
	// a treasury refusal aborts creation instead of leaving an unfunded
	// proposal. Refunds and burns disburse from the same pool on settlement.
	if err := c.App.Treasury.Deposit(treasury.PoolGovernance, req.Deposit, "proposal escrow", now); err != nil {
		writeCoded(w, err)
		return
	}

	p, err := c.App.Proposals.Create(req.Proposer, req.Type, req.Title, req.Description,
		req.TargetKey, req.TargetValue, req.Deposit, now)
	if err != nil {
		if derr := c.App.Treasury.Disburse(treasury.PoolGovernance, req.Deposit, "escrow return", req.Proposer, now); derr != nil {
			c.App.Logger.Error("Failed to return escrow for rejected proposal",
				zap.String("proposer", req.Proposer), zap.Error(derr))
		}
		writeCoded(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (c *Controller) HandleListProposals(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	var out []*governance.Proposal
	c.App.Proposals.Range(func(p *governance.Proposal) bool {
		if status == "" || p.Status.String() == status {
			out = append(out, p)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].VotingStart > out[j].VotingStart })

	writeJSON(w, http.StatusOK, map[string]interface{}{"data": out, "total": len(out)})
}

func (c *Controller) HandleProposal(w http.ResponseWriter, r *http.Request) {
	p, err := c.App.Proposals.Get(mux.Vars(r)["id"])
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type voteRequest struct {
	Voter string `json:"voter"`
	Vote  string `json:"vote"`
}

func (c *Controller) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var t governance.VoteType
	switch req.Vote {
	case "for":
		t = governance.VoteFor
	case "against":
		t = governance.VoteAgainst
	case "abstain":
		t = governance.VoteAbstain
	default:
		writeError(w, http.StatusBadRequest, "vote must be 'for', 'against' or 'abstain'")
		return
	}

	rec, err := c.App.Proposals.Vote(mux.Vars(r)["id"], req.Voter, t, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (c *Controller) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	p, err := c.App.Proposals.Finalize(mux.Vars(r)["id"], c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *Controller) HandleExecute(w http.ResponseWriter, r *http.Request) {
	p, err := c.App.Proposals.Execute(mux.Vars(r)["id"], c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type cancelRequest struct {
	Caller string `json:"caller"`
}

func (c *Controller) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := c.App.Proposals.Cancel(mux.Vars(r)["id"], req.Caller, c.App.Now())
	if err != nil {
		writeCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
