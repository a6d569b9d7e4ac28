package lending

import (
	"fmt"
	"math/big"
	"strings"

	"creditguild/core/events"
	"creditguild/native/common"
)

// GaugeView exposes the weighted-allocation signal that bounds each market's
// debt ceiling.
type GaugeView interface {
	Weight(market string) (*big.Int, error)
	TotalWeight() (*big.Int, error)
	IsActive(market string) (bool, error)
}

const gaugeIndexKey = "lending/gauges"

type gaugeRecord struct {
	Weight *big.Int
	Active bool
}

// StaticGauges keeps gauge weights in state. It stands in for the external
// voting system and is adjusted by the gauge oracle role.
type StaticGauges struct {
	state   engineState
	policy  common.Policy
	emitter events.Emitter
}

// NewStaticGauges binds gauges to state.
func NewStaticGauges(state engineState, policy common.Policy) *StaticGauges {
	if policy == nil {
		policy = common.DefaultPolicy()
	}
	return &StaticGauges{state: state, policy: policy, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event sink.
func (g *StaticGauges) SetEmitter(emitter events.Emitter) {
	if g == nil {
		return
	}
	if emitter == nil {
		g.emitter = events.NoopEmitter{}
		return
	}
	g.emitter = emitter
}

func gaugeKey(market string) []byte {
	return []byte("lending/gauge/" + market)
}

func (g *StaticGauges) load(market string) (*gaugeRecord, error) {
	if g == nil || g.state == nil {
		return nil, errNilState
	}
	var rec gaugeRecord
	ok, err := g.state.KVGet(gaugeKey(market), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &gaugeRecord{Weight: big.NewInt(0)}, nil
	}
	rec.Weight = cloneBig(rec.Weight)
	return &rec, nil
}

// Put records a gauge without an authorization check. Genesis uses it.
func (g *StaticGauges) Put(market string, weight *big.Int, active bool) error {
	if g == nil || g.state == nil {
		return errNilState
	}
	market = strings.ToLower(strings.TrimSpace(market))
	if market == "" {
		return configErr("gauge market required")
	}
	if weight == nil || weight.Sign() < 0 {
		return configErr("gauge weight must not be negative")
	}
	if err := g.state.KVPut(gaugeKey(market), gaugeRecord{Weight: new(big.Int).Set(weight), Active: active}); err != nil {
		return err
	}
	return g.state.KVAppend([]byte(gaugeIndexKey), []byte(market))
}

// SetGauge updates a market's weight and activity flag.
func (g *StaticGauges) SetGauge(caller common.Caller, market string, weight *big.Int, active bool) error {
	if err := g.policy.Authorize(common.OpSetGauge, caller); err != nil {
		return err
	}
	if err := g.Put(market, weight, active); err != nil {
		return err
	}
	g.emitter.Emit(events.MarketParamUpdated{
		Market: strings.ToLower(strings.TrimSpace(market)),
		Param:  "gauge",
		Value:  fmt.Sprintf("weight=%s active=%t", weight, active),
	})
	return nil
}

// Weight implements GaugeView. Inactive gauges weigh nothing.
func (g *StaticGauges) Weight(market string) (*big.Int, error) {
	rec, err := g.load(strings.ToLower(strings.TrimSpace(market)))
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return big.NewInt(0), nil
	}
	return rec.Weight, nil
}

// TotalWeight implements GaugeView.
func (g *StaticGauges) TotalWeight() (*big.Int, error) {
	if g == nil || g.state == nil {
		return nil, errNilState
	}
	var markets [][]byte
	if err := g.state.KVGetList([]byte(gaugeIndexKey), &markets); err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, m := range markets {
		weight, err := g.Weight(string(m))
		if err != nil {
			return nil, err
		}
		total.Add(total, weight)
	}
	return total, nil
}

// IsActive implements GaugeView.
func (g *StaticGauges) IsActive(market string) (bool, error) {
	rec, err := g.load(strings.ToLower(strings.TrimSpace(market)))
	if err != nil {
		return false, err
	}
	return rec.Active, nil
}
