package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type borrowRequest struct {
	Market     string `json:"market"`
	Amount     string `json:"amount"`
	Collateral string `json:"collateral"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (a *api) mountLending(r chi.Router) {
	r.Post("/loans", a.borrow)
	r.Post("/loans/{loanID}/repay", a.repay)
	r.Post("/loans/{loanID}/partial-repay", a.partialRepay)
	r.Post("/loans/{loanID}/call", a.callLoan)
	r.Post("/transfers", a.transfer)
}

func (a *api) borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	collateral, err := parseAmount("collateral", req.Collateral)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	loan, err := a.protocol.Borrow(callerOf(r), req.Market, amount, collateral, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLoanView(loan))
}

func (a *api) repay(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := a.protocol.Repay(callerOf(r), id, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRepayView(res))
}

func (a *api) partialRepay(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
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
	res, err := a.protocol.PartialRepay(callerOf(r), id, amount, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRepayView(res))
}

func (a *api) callLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	loan, err := a.protocol.Call(callerOf(r), id, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLoanView(loan))
}

type transferRequest struct {
	To     string `json:"to"`
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (a *api) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
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
	if err := a.protocol.Transfer(callerOf(r), to, req.Denom, amount); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
