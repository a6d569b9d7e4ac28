package routes

import (
	"creditguild/crypto"
	"creditguild/native/auction"
	"creditguild/native/lending"
	"creditguild/native/profit"
)

type loanView struct {
	ID               uint64 `json:"id"`
	Market           string `json:"market"`
	Borrower         string `json:"borrower"`
	Status           string `json:"status"`
	Collateral       string `json:"collateral"`
	Principal        string `json:"principal"`
	BorrowMultiplier string `json:"borrowMultiplier"`
	OpenTime         uint64 `json:"openTime"`
	LastPartialRepay uint64 `json:"lastPartialRepay"`
	Caller           string `json:"caller,omitempty"`
	CallTime         uint64 `json:"callTime,omitempty"`
	CallDebt         string `json:"callDebt,omitempty"`
	CloseTime        uint64 `json:"closeTime,omitempty"`
}

func newLoanView(l *lending.Loan) loanView {
	view := loanView{
		ID:               l.ID,
		Market:           l.Market,
		Borrower:         crypto.FormatAddress(l.Borrower),
		Status:           l.Status.String(),
		Collateral:       formatAmount(l.CollateralAmount),
		Principal:        formatAmount(l.BorrowAmount),
		BorrowMultiplier: formatAmount(l.BorrowMultiplier),
		OpenTime:         l.OpenTime,
		LastPartialRepay: l.LastPartialRepay,
		CallTime:         l.CallTime,
		CloseTime:        l.CloseTime,
	}
	if l.CallTime != 0 {
		view.Caller = crypto.FormatAddress(l.Caller)
		view.CallDebt = formatAmount(l.CallDebt)
	}
	return view
}

type marketView struct {
	Name                        string `json:"name"`
	CollateralDenom             string `json:"collateralDenom"`
	Authority                   string `json:"authority"`
	InterestRate                string `json:"interestRate"`
	OpeningFee                  string `json:"openingFee"`
	MaxDebtPerCollateral        string `json:"maxDebtPerCollateral"`
	MinPartialRepayPercent      string `json:"minPartialRepayPercent"`
	MaxDelayBetweenPartialRepay uint64 `json:"maxDelayBetweenPartialRepay"`
	HardCap                     string `json:"hardCap"`
	MinBorrow                   string `json:"minBorrow"`
	GaugeWeightTolerance        string `json:"gaugeWeightTolerance"`
	Issuance                    string `json:"issuance"`
	OpenLoans                   uint64 `json:"openLoans"`
}

func newMarketView(m *lending.Market) marketView {
	p := m.Params
	return marketView{
		Name:                        p.Name,
		CollateralDenom:             p.CollateralDenom,
		Authority:                   p.Authority,
		InterestRate:                formatAmount(p.InterestRate),
		OpeningFee:                  formatAmount(p.OpeningFee),
		MaxDebtPerCollateral:        formatAmount(p.MaxDebtPerCollateral),
		MinPartialRepayPercent:      formatAmount(p.MinPartialRepayPercent),
		MaxDelayBetweenPartialRepay: p.MaxDelayBetweenPartialRepay,
		HardCap:                     formatAmount(p.HardCap),
		MinBorrow:                   formatAmount(p.MinBorrow),
		GaugeWeightTolerance:        formatAmount(p.GaugeWeightTolerance),
		Issuance:                    formatAmount(m.Issuance),
		OpenLoans:                   m.OpenLoans,
	}
}

type auctionView struct {
	LoanID     uint64 `json:"loanId"`
	Market     string `json:"market"`
	StartTime  uint64 `json:"startTime"`
	CallDebt   string `json:"callDebt"`
	Collateral string `json:"collateral"`
	MidPoint   uint64 `json:"midPoint"`
	Duration   uint64 `json:"duration"`
}

func newAuctionView(a *auction.Auction) auctionView {
	return auctionView{
		LoanID:     a.LoanID,
		Market:     a.Market,
		StartTime:  a.StartTime,
		CallDebt:   formatAmount(a.CallDebt),
		Collateral: formatAmount(a.CollateralAmount),
		MidPoint:   a.MidPoint,
		Duration:   a.Duration,
	}
}

type settlementView struct {
	Loan         loanView `json:"loan"`
	PnL          string   `json:"pnl"`
	CreditBurned string   `json:"creditBurned"`
	Interest     string   `json:"interest"`
}

func newSettlementView(s *lending.Settlement) settlementView {
	return settlementView{
		Loan:         newLoanView(s.Loan),
		PnL:          formatAmount(s.PnL),
		CreditBurned: formatAmount(s.CreditBurned),
		Interest:     formatAmount(s.Interest),
	}
}

type repayView struct {
	Loan      loanView `json:"loan"`
	Paid      string   `json:"paid"`
	Principal string   `json:"principal"`
	Interest  string   `json:"interest"`
}

func newRepayView(res *lending.RepayResult) repayView {
	return repayView{
		Loan:      newLoanView(res.Loan),
		Paid:      formatAmount(res.Paid),
		Principal: formatAmount(res.Principal),
		Interest:  formatAmount(res.Interest),
	}
}

type sharingView struct {
	SurplusBufferSplit string `json:"surplusBufferSplit"`
	CreditSplit        string `json:"creditSplit"`
	GuildSplit         string `json:"guildSplit"`
	OtherSplit         string `json:"otherSplit"`
	OtherRecipient     string `json:"otherRecipient,omitempty"`
}

func newSharingView(cfg profit.SharingConfig) sharingView {
	view := sharingView{
		SurplusBufferSplit: formatAmount(cfg.SurplusBufferSplit),
		CreditSplit:        formatAmount(cfg.CreditSplit),
		GuildSplit:         formatAmount(cfg.GuildSplit),
		OtherSplit:         formatAmount(cfg.OtherSplit),
	}
	if cfg.OtherRecipient != ([20]byte{}) {
		view.OtherRecipient = crypto.FormatAddress(cfg.OtherRecipient)
	}
	return view
}
