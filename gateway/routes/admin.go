package routes

import (
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditguild/native/auction"
	"creditguild/native/profit"
)

type gaugeRequest struct {
	Weight string `json:"weight"`
	Active bool   `json:"active"`
}

type rateLimitRequest struct {
	Authority     string `json:"authority"`
	Capacity      string `json:"capacity,omitempty"`
	RatePerSecond string `json:"ratePerSecond,omitempty"`
}

type auctionParamsRequest struct {
	MidPoint uint64 `json:"midPoint"`
	Duration uint64 `json:"duration"`
}

type sharingRequest struct {
	SurplusBufferSplit string `json:"surplusBufferSplit"`
	CreditSplit        string `json:"creditSplit"`
	GuildSplit         string `json:"guildSplit"`
	OtherSplit         string `json:"otherSplit"`
	OtherRecipient     string `json:"otherRecipient,omitempty"`
}

type roleRequest struct {
	Role    string `json:"role"`
	Address string `json:"address"`
	Revoke  bool   `json:"revoke,omitempty"`
}

type pauseRequest struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (a *api) mountAdmin(r chi.Router) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Post("/markets/{market}/hard-cap", a.marketAmountSetter(a.protocol.SetHardCap))
		ar.Post("/markets/{market}/min-borrow", a.marketAmountSetter(a.protocol.SetMinBorrow))
		ar.Post("/markets/{market}/gauge-tolerance", a.marketAmountSetter(a.protocol.SetGaugeWeightTolerance))
		ar.Post("/markets/{market}/gauge", a.setGauge)
		ar.Post("/ratelimits", a.setRateLimit)
		ar.Post("/auction-params", a.setAuctionParams)
		ar.Post("/profit-sharing", a.setProfitSharing)
		ar.Post("/roles", a.changeRole)
		ar.Post("/pauses", a.setPaused)
	})
}

func (a *api) marketAmountSetter(set func([20]byte, string, *big.Int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		if err := set(callerOf(r), chi.URLParam(r, "market"), amount); err != nil {
			a.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *api) setGauge(w http.ResponseWriter, r *http.Request) {
	var req gaugeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	weight, err := parseAmount("weight", req.Weight)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := a.protocol.SetGauge(callerOf(r), chi.URLParam(r, "market"), weight, req.Active); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setRateLimit(w http.ResponseWriter, r *http.Request) {
	var req rateLimitRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Capacity == "" && req.RatePerSecond == "" {
		writeBadRequest(w, errors.New("capacity or ratePerSecond required"))
		return
	}
	caller, now := callerOf(r), a.now()
	if req.Capacity != "" {
		capacity, err := parseAmount("capacity", req.Capacity)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		if err := a.protocol.SetBufferCap(caller, req.Authority, capacity, now); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if req.RatePerSecond != "" {
		rate, err := parseAmount("ratePerSecond", req.RatePerSecond)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		if err := a.protocol.SetRateLimitPerSecond(caller, req.Authority, rate, now); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setAuctionParams(w http.ResponseWriter, r *http.Request) {
	var req auctionParamsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	params := auction.Params{MidPoint: req.MidPoint, Duration: req.Duration}
	if err := a.protocol.SetAuctionParams(callerOf(r), params); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setProfitSharing(w http.ResponseWriter, r *http.Request) {
	var req sharingRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	var (
		cfg profit.SharingConfig
		err error
	)
	splits := []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"surplusBufferSplit", req.SurplusBufferSplit, &cfg.SurplusBufferSplit},
		{"creditSplit", req.CreditSplit, &cfg.CreditSplit},
		{"guildSplit", req.GuildSplit, &cfg.GuildSplit},
		{"otherSplit", req.OtherSplit, &cfg.OtherSplit},
	}
	for _, s := range splits {
		raw := s.raw
		if raw == "" {
			raw = "0"
		}
		if *s.dst, err = parseAmount(s.name, raw); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	if req.OtherRecipient != "" {
		if cfg.OtherRecipient, err = parseAddress("otherRecipient", req.OtherRecipient); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	if err := a.protocol.SetProfitSharing(callerOf(r), cfg); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) changeRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Revoke {
		err = a.protocol.RevokeRole(callerOf(r), req.Role, addr)
	} else {
		err = a.protocol.GrantRole(callerOf(r), req.Role, addr)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := a.protocol.SetPaused(callerOf(r), req.Module, req.Paused); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
