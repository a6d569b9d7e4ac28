package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"creditguild/config"
	"creditguild/core"
	"creditguild/crypto"
	"creditguild/gateway/middleware"
	"creditguild/native/common"
	"creditguild/native/lending"
	"creditguild/storage"
)

const secret = "routes-test-secret-routes-test-secret"

var (
	governor = [20]byte{0x01}
	oracle   = [20]byte{0x02}
	borrower = [20]byte{0x05}
	bidder   = [20]byte{0x06}
)

type fixture struct {
	handler  http.Handler
	protocol *core.Protocol
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	genesis := &config.Genesis{
		CreditDenom:   "credit",
		Auction:       config.AuctionConfig{MidPoint: "10m", Duration: "20m"},
		ProfitSharing: config.ProfitSharingConfig{CreditSplit: "1"},
		Markets: []config.MarketConfig{{
			Name:                 "weth",
			CollateralDenom:      "weth",
			MaxDebtPerCollateral: "2",
			HardCap:              "1000000",
			MinBorrow:            "10",
			GaugeWeight:          "1",
			RateLimitCapacity:    "10000",
			RateLimitPerSecond:   "1",
		}},
		Roles: []config.RoleConfig{
			{Role: "governor", Address: crypto.FormatAddress(governor)},
			{Role: "gauge_oracle", Address: crypto.FormatAddress(oracle)},
		},
		Balances: []config.BalanceConfig{
			{Address: crypto.FormatAddress(borrower), Denom: "weth", Amount: "1000"},
			{Address: crypto.FormatAddress(bidder), Denom: "credit", Amount: "500"},
		},
	}
	resolved, err := genesis.Resolve()
	require.NoError(t, err)
	protocol := core.NewProtocol(storage.NewMemDB(), nil)
	require.NoError(t, protocol.InitGenesis(resolved))

	auth, err := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: secret}, nil)
	require.NoError(t, err)
	f := &fixture{protocol: protocol, now: time.Unix(1_000, 0)}
	handler, err := New(Config{
		Protocol:      protocol,
		Authenticator: auth,
		Clock:         func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.handler = handler
	return f
}

func bearer(t *testing.T, account [20]byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   crypto.FormatAddress(account),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *fixture) do(t *testing.T, method, path string, as *[20]byte, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if as != nil {
		req.Header.Set("Authorization", bearer(t, *as))
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotEmpty(t, res.Header().Get(middleware.HeaderRequestID))
}

func TestWritesRequireToken(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/v1/loans", nil, borrowRequest{Market: "weth", Amount: "100", Collateral: "100"})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestBorrowRepayOverHTTP(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/v1/loans", &borrower, borrowRequest{Market: "weth", Amount: "100", Collateral: "75.5"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	loan := decode(t, res)
	require.Equal(t, float64(1), loan["id"])
	require.Equal(t, "75.5", loan["collateral"])
	require.Equal(t, "active", loan["status"])

	res = f.do(t, http.MethodGet, "/v1/loans/1", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "100", decode(t, res)["debt"])

	res = f.do(t, http.MethodGet, "/v1/accounts/"+crypto.FormatAddress(borrower)+"/loans", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, []interface{}{float64(1)}, decode(t, res)["loans"])

	res = f.do(t, http.MethodGet, "/v1/markets/weth/ratelimit", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "9900", decode(t, res)["level"])

	res = f.do(t, http.MethodPost, "/v1/loans/1/repay", &borrower, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "100", decode(t, res)["paid"])

	res = f.do(t, http.MethodGet, "/v1/events?after=0", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "lending.loan_closed")
}

func TestRepayWithoutEnoughCreditIsRejected(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/v1/loans", &borrower, borrowRequest{Market: "weth", Amount: "100", Collateral: "60"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	res = f.do(t, http.MethodPost, "/v1/transfers", &borrower, transferRequest{To: crypto.FormatAddress(bidder), Denom: "credit", Amount: "30"})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/loans/1/repay", &borrower, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
	require.Equal(t, "admission_denied", decode(t, res)["class"])

	res = f.do(t, http.MethodGet, "/v1/loans/1", nil, nil)
	require.Equal(t, "active", decode(t, res)["status"])
}

func TestProtocolErrorsMapToStatus(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		method string
		path   string
		as     *[20]byte
		body   interface{}
		status int
		class  string
	}{
		{"unknown loan", http.MethodGet, "/v1/loans/42", nil, nil, http.StatusNotFound, "invalid_state"},
		{"bad loan id", http.MethodGet, "/v1/loans/abc", nil, nil, http.StatusBadRequest, "bad_request"},
		{"below minimum", http.MethodPost, "/v1/loans", &borrower, borrowRequest{Market: "weth", Amount: "1", Collateral: "10"}, http.StatusUnprocessableEntity, "admission_denied"},
		{"negative amount", http.MethodPost, "/v1/loans", &borrower, borrowRequest{Market: "weth", Amount: "-1", Collateral: "10"}, http.StatusBadRequest, "bad_request"},
		{"not a governor", http.MethodPost, "/v1/admin/markets/weth/hard-cap", &borrower, amountRequest{Amount: "5"}, http.StatusForbidden, "unauthorized"},
		{"unknown field", http.MethodPost, "/v1/loans", &borrower, map[string]string{"market": "weth", "colour": "red"}, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.do(t, tc.method, tc.path, tc.as, tc.body)
			require.Equal(t, tc.status, res.Code, res.Body.String())
			require.Equal(t, tc.class, decode(t, res)["class"])
		})
	}
}

func TestStatusForClasses(t *testing.T) {
	require.Equal(t, http.StatusPreconditionFailed, statusFor(lending.ErrNotCallable))
	require.Equal(t, http.StatusConflict, statusFor(lending.ErrLoanNotActive))
	require.Equal(t, http.StatusBadRequest, statusFor(common.NewError(common.ErrConfigInvalid, "bad")))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(core.ErrNotInitialised))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk on fire")))
}

func TestCallAndBidOverHTTP(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/v1/loans", &borrower, borrowRequest{Market: "weth", Amount: "100", Collateral: "100"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/loans/1/call", &bidder, nil)
	require.Equal(t, http.StatusPreconditionFailed, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/admin/markets/weth/gauge", &oracle, gaugeRequest{Weight: "1", Active: false})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())
	res = f.do(t, http.MethodPost, "/v1/loans/1/call", &bidder, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodGet, "/v1/auctions/1?at=1840", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	detail := decode(t, res)
	require.Equal(t, "60", detail["creditIn"])
	require.Equal(t, "100", detail["collateralOut"])

	f.now = time.Unix(1_840, 0)
	res = f.do(t, http.MethodPost, "/v1/auctions/1/bid", &bidder, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	bid := decode(t, res)
	require.Equal(t, "60", bid["creditIn"])
	settlement := bid["settlement"].(map[string]interface{})
	require.Equal(t, "-40", settlement["pnl"])

	res = f.do(t, http.MethodGet, "/v1/auctions", nil, nil)
	require.Equal(t, float64(0), decode(t, res)["inProgress"])
	res = f.do(t, http.MethodGet, "/v1/profit", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, strings.HasPrefix(decode(t, res)["creditMultiplier"].(string), "0.9"))
}

func TestGovernanceOverHTTP(t *testing.T) {
	f := newFixture(t)
	res := f.do(t, http.MethodPost, "/v1/admin/roles", &governor, roleRequest{Role: "surplus_withdrawer", Address: crypto.FormatAddress(bidder)})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())

	res = f.do(t, http.MethodPost, "/v1/profit/buffers/global/donate", &bidder, amountRequest{Amount: "50"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "50", decode(t, res)["level"])

	res = f.do(t, http.MethodPost, "/v1/profit/buffers/global/withdraw", &bidder, withdrawRequest{To: crypto.FormatAddress(bidder), Amount: "20"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "30", decode(t, res)["level"])

	res = f.do(t, http.MethodGet, "/v1/profit/buffers/global", nil, nil)
	require.Equal(t, "30", decode(t, res)["level"])

	res = f.do(t, http.MethodPost, "/v1/admin/pauses", &governor, pauseRequest{Module: "lending", Paused: true})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())
	res = f.do(t, http.MethodPost, "/v1/loans", &borrower, borrowRequest{Market: "weth", Amount: "100", Collateral: "100"})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = f.do(t, http.MethodPost, "/v1/admin/ratelimits", &governor, rateLimitRequest{Authority: "market/weth", Capacity: "20000"})
	require.Equal(t, http.StatusNoContent, res.Code, res.Body.String())
	res = f.do(t, http.MethodGet, "/v1/markets/weth/ratelimit", nil, nil)
	require.Equal(t, "20000", decode(t, res)["capacity"])
}
