package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *api) mountAuctions(r chi.Router) {
	r.Post("/auctions/{loanID}/bid", a.bid)
	r.Post("/auctions/{loanID}/forgive", a.forgive)
}

func (a *api) bid(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := a.protocol.Bid(callerOf(r), id, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collateralOut": formatAmount(res.CollateralOut),
		"creditIn":      formatAmount(res.CreditIn),
		"settlement":    newSettlementView(res.Settlement),
	})
}

func (a *api) forgive(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	settlement, err := a.protocol.Forgive(callerOf(r), id, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(settlement))
}
