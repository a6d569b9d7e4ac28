package routes

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"creditguild/crypto"
	"creditguild/native/auction"
)

func (a *api) mountQueries(r chi.Router) {
	r.Get("/markets", a.listMarkets)
	r.Get("/markets/{market}", a.getMarket)
	r.Get("/markets/{market}/ratelimit", a.getMarketRateLimit)
	r.Get("/loans/{loanID}", a.getLoan)
	r.Get("/accounts/{address}/loans", a.listAccountLoans)
	r.Get("/accounts/{address}/balances/{denom}", a.getBalance)
	r.Get("/auctions", a.auctionSummary)
	r.Get("/auctions/{loanID}", a.getAuction)
	r.Get("/profit", a.profitSummary)
	r.Get("/profit/buffers/{market}", a.getSurplusBuffer)
	r.Get("/events", a.listEvents)
}

func (a *api) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := a.protocol.Markets()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	total, err := a.protocol.TotalIssuance()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, newMarketView(m))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"markets":       views,
		"totalIssuance": formatAmount(total),
	})
}

func (a *api) getMarket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "market")
	market, err := a.protocol.Market(name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ceiling, err := a.protocol.DebtCeiling(name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"market":      newMarketView(market),
		"debtCeiling": formatAmount(ceiling),
	})
}

func (a *api) getMarketRateLimit(w http.ResponseWriter, r *http.Request) {
	market, err := a.protocol.Market(chi.URLParam(r, "market"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	buffer, level, err := a.protocol.RateLimit(market.Params.Authority, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"authority":     market.Params.Authority,
		"capacity":      formatAmount(buffer.Capacity),
		"ratePerSecond": formatAmount(buffer.RatePerSecond),
		"level":         formatAmount(level),
	})
}

func (a *api) getLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	loan, err := a.protocol.Loan(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	now := a.now()
	debt, err := a.protocol.LoanDebt(id, now)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	delayPassed, err := a.protocol.PartialRepayDelayPassed(id, now)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loan":                    newLoanView(loan),
		"debt":                    formatAmount(debt),
		"partialRepayDelayPassed": delayPassed,
	})
}

func (a *api) listAccountLoans(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	ids, err := a.protocol.LoansOf(addr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"loans": ids})
}

func (a *api) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "address")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	denom := chi.URLParam(r, "denom")
	balance, err := a.protocol.Balance(denom, addr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": crypto.FormatAddress(addr),
		"denom":   denom,
		"balance": formatAmount(balance),
	})
}

func (a *api) auctionSummary(w http.ResponseWriter, r *http.Request) {
	count, err := a.protocol.AuctionsInProgress()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	params, err := a.protocol.AuctionParams()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"inProgress": count,
		"midPoint":   params.MidPoint,
		"duration":   params.Duration,
	})
}

func (a *api) getAuction(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	at := a.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		if at, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeBadRequest(w, fmt.Errorf("invalid at %q", raw))
			return
		}
	}
	var item *auction.Auction
	if item, err = a.protocol.Auction(id); err != nil {
		a.writeError(w, r, err)
		return
	}
	collateralOut, creditIn, err := a.protocol.GetBidDetail(id, at)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"auction":       newAuctionView(item),
		"at":            at,
		"collateralOut": formatAmount(collateralOut),
		"creditIn":      formatAmount(creditIn),
	})
}

func (a *api) profitSummary(w http.ResponseWriter, r *http.Request) {
	multiplier, err := a.protocol.Multiplier()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sharing, err := a.protocol.ProfitSharing()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	global, err := a.protocol.SurplusBuffer("")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	denom, err := a.protocol.CreditDenom()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	supply, err := a.protocol.TotalSupply(denom)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"creditDenom":         denom,
		"creditMultiplier":    formatAmount(multiplier),
		"creditSupply":        formatAmount(supply),
		"globalSurplusBuffer": formatAmount(global),
		"profitSharing":       newSharingView(sharing),
	})
}

func (a *api) getSurplusBuffer(w http.ResponseWriter, r *http.Request) {
	market := marketParam(r)
	level, err := a.protocol.SurplusBuffer(market)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := map[string]string{"level": formatAmount(level)}
	if market != "" {
		rewards, err := a.protocol.GuildRewards(market)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		resp["guildRewards"] = formatAmount(rewards)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) listEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("invalid after %q", raw))
			return
		}
		after = parsed
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": a.protocol.EventsSince(after)})
}
