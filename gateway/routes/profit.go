package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type withdrawRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type claimRequest struct {
	To string `json:"to"`
}

func (a *api) mountProfit(r chi.Router) {
	r.Post("/profit/buffers/{market}/donate", a.donate)
	r.Post("/profit/buffers/{market}/withdraw", a.withdrawSurplus)
	r.Post("/profit/rewards/{market}/claim", a.claimGuildRewards)
}

func (a *api) donate(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	level, err := a.protocol.Donate(callerOf(r), marketParam(r), amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"level": formatAmount(level)})
}

func (a *api) withdrawSurplus(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	level, err := a.protocol.WithdrawSurplus(callerOf(r), marketParam(r), to, amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"level": formatAmount(level)})
}

func (a *api) claimGuildRewards(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	paid, err := a.protocol.ClaimGuildRewards(callerOf(r), chi.URLParam(r, "market"), to)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paid": formatAmount(paid)})
}
