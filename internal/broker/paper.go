package broker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PaperInstrument describes one contract the paper venue can trade.
type PaperInstrument struct {
	Symbol     string
	Exchange   string
	Currency   string
	Multiplier string
	MinTick    decimal.Decimal
	Price      decimal.Decimal
	TimeZoneID string
	// SessionOpen and SessionClose are daily "HHMM" bounds in TimeZoneID.
	// A close earlier than the open ends on the next day.
	SessionOpen  string
	SessionClose string
}

type paperOrder struct {
	id       string
	contract Contract
	spec     OrderSpec
	status   string
}

// PaperGateway is an in-process venue with static prices. Market orders fill
// at once; a held parent fills when its transmitting child arrives and the child
// rests. Resting stops never trigger.
type PaperGateway struct {
	mu          sync.Mutex
	clock       func() time.Time
	balance     decimal.Decimal
	instruments map[string]*PaperInstrument
	orders      map[string]*paperOrder
	positions   map[string]*Position
	nextID      int64
	nextConID   int64
}

// Ensure PaperGateway implements Gateway at compile time.
var _ Gateway = (*PaperGateway)(nil)

// NewPaperGateway creates a paper venue. A nil clock uses time.Now.
func NewPaperGateway(balance decimal.Decimal, instruments []PaperInstrument, clock func() time.Time) *PaperGateway {
	if clock == nil {
		clock = time.Now
	}
	p := &PaperGateway{
		clock:       clock,
		balance:     balance,
		instruments: make(map[string]*PaperInstrument),
		orders:      make(map[string]*paperOrder),
		positions:   make(map[string]*Position),
		nextID:      1,
		nextConID:   1000,
	}
	for i := range instruments {
		inst := instruments[i]
		if inst.TimeZoneID == "" {
			inst.TimeZoneID = "UTC"
		}
		if inst.SessionOpen == "" || inst.SessionClose == "" {
			inst.SessionOpen, inst.SessionClose = "0000", "2359"
		}
		p.instruments[instrumentKey(inst.Symbol, inst.Exchange)] = &inst
	}
	return p
}

func instrumentKey(symbol, exchange string) string {
	return strings.ToUpper(symbol) + "@" + strings.ToUpper(exchange)
}

// SetPrice changes the reference price of an instrument
func (p *PaperGateway) SetPrice(symbol, exchange string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inst, ok := p.instruments[instrumentKey(symbol, exchange)]; ok {
		inst.Price = price
	}
}

// CurrentTime returns the venue clock
func (p *PaperGateway) CurrentTime(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	return p.clock().UTC(), nil
}

// ResolveContract looks up a configured instrument
func (p *PaperGateway) ResolveContract(ctx context.Context, symbol, exchange string) (*ContractDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instruments[instrumentKey(symbol, exchange)]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrContractNotFound, symbol, exchange)
	}
	loc, err := time.LoadLocation(inst.TimeZoneID)
	if err != nil {
		return nil, fmt.Errorf("instrument %s zone: %w", symbol, err)
	}
	return &ContractDetails{
		Contract:     p.contractFor(inst),
		Multiplier:   inst.Multiplier,
		MinTick:      inst.MinTick,
		TradingHours: weeklySchedule(p.clock().In(loc), inst.SessionOpen, inst.SessionClose),
		TimeZoneID:   inst.TimeZoneID,
	}, nil
}

func (p *PaperGateway) contractFor(inst *PaperInstrument) Contract {
	return Contract{
		ConID:    p.conID(inst),
		Symbol:   inst.Symbol,
		SecType:  SecTypeContinuousFuture,
		Exchange: inst.Exchange,
		Currency: inst.Currency,
	}
}

func (p *PaperGateway) conID(inst *PaperInstrument) int64 {
	keys := lo.Keys(p.instruments)
	sort.Strings(keys)
	return p.nextConID + int64(lo.IndexOf(keys, instrumentKey(inst.Symbol, inst.Exchange)))
}

// weeklySchedule renders a broker-format schedule for the day before now and six days after.
// Weekends are CLOSED.
func weeklySchedule(now time.Time, open, close string) string {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
	entries := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		d := day.AddDate(0, 0, i)
		date := d.Format("20060102")
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			entries = append(entries, date+":CLOSED")
			continue
		}
		endDate := date
		if close < open {
			endDate = d.AddDate(0, 0, 1).Format("20060102")
		}
		entries = append(entries, fmt.Sprintf("%s:%s-%s:%s", date, open, endDate, close))
	}
	return strings.Join(entries, ";")
}

// HistoricalBars returns flat one-minute bars at the reference price for the last hour
func (p *PaperGateway) HistoricalBars(ctx context.Context, contract Contract, duration, barSize string) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instruments[instrumentKey(contract.Symbol, contract.Exchange)]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrContractNotFound, contract.Symbol, contract.Exchange)
	}
	end := p.clock().UTC().Truncate(time.Minute)
	bars := make([]Bar, 0, 60)
	for i := 59; i >= 0; i-- {
		bars = append(bars, Bar{
			Time:  end.Add(-time.Duration(i) * time.Minute),
			Open:  inst.Price,
			High:  inst.Price,
			Low:   inst.Price,
			Close: inst.Price,
		})
	}
	return bars, nil
}

// AccountBalance returns the static paper balance
func (p *PaperGateway) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

// Positions lists non-flat positions
func (p *PaperGateway) Positions(ctx context.Context) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if !pos.IsFlat() {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contract.Symbol < out[j].Contract.Symbol })
	return out, nil
}

// PlaceOrder accepts an order
func (p *PaperGateway) PlaceOrder(ctx context.Context, contract Contract, spec OrderSpec) (*OrderHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instruments[instrumentKey(contract.Symbol, contract.Exchange)]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrContractNotFound, contract.Symbol, contract.Exchange)
	}
	if spec.Quantity <= 0 {
		return nil, fmt.Errorf("invalid quantity %d", spec.Quantity)
	}
	if spec.Side != SideBuy && spec.Side != SideSell {
		return nil, fmt.Errorf("invalid side %q", spec.Side)
	}

	var parent *paperOrder
	if spec.ParentID != "" {
		parent, ok = p.orders[spec.ParentID]
		if !ok {
			return nil, fmt.Errorf("parent %s: %w", spec.ParentID, ErrOrderNotFound)
		}
		if parent.status != OrderStatusPreSubmitted && parent.status != OrderStatusSubmitted {
			return nil, fmt.Errorf("parent %s is %s", spec.ParentID, parent.status)
		}
	}

	o := &paperOrder{
		id:       strconv.FormatInt(p.nextID, 10),
		contract: contract,
		spec:     spec,
	}
	p.nextID++
	p.orders[o.id] = o

	switch {
	case !spec.Transmit:
		o.status = OrderStatusPreSubmitted
	case spec.Type == OrderTypeMarket:
		p.fill(o, inst.Price)
	case spec.Type == OrderTypeLimit:
		p.fill(o, spec.LimitPrice)
	default:
		o.status = OrderStatusSubmitted
	}

	if parent != nil && spec.Transmit && parent.status == OrderStatusPreSubmitted {
		price := parent.spec.LimitPrice
		if parent.spec.Type == OrderTypeMarket {
			price = inst.Price
		}
		p.fill(parent, price)
	}

	return &OrderHandle{OrderID: o.id, Status: o.status}, nil
}

// fill marks o filled at price and books the position. Caller holds p.mu.
func (p *PaperGateway) fill(o *paperOrder, price decimal.Decimal) {
	o.status = OrderStatusFilled
	key := instrumentKey(o.contract.Symbol, o.contract.Exchange)
	pos, ok := p.positions[key]
	if !ok {
		pos = &Position{Contract: o.contract}
		p.positions[key] = pos
	}
	qty := decimal.NewFromInt(int64(o.spec.Quantity))
	if o.spec.Side == SideSell {
		qty = qty.Neg()
	}
	newQty := pos.Quantity.Add(qty)
	switch {
	case newQty.IsZero():
		pos.AvgCost = decimal.Zero
	case pos.Quantity.IsZero() || pos.Quantity.Sign() != newQty.Sign():
		pos.AvgCost = price
	case pos.Quantity.Sign() == qty.Sign():
		pos.AvgCost = pos.AvgCost.Mul(pos.Quantity).Add(price.Mul(qty)).Div(newQty)
	}
	pos.Quantity = newQty
}

// CancelOrder cancels a working order
func (p *PaperGateway) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("%s: %w", orderID, ErrOrderNotFound)
	}
	if o.status != OrderStatusPreSubmitted && o.status != OrderStatusSubmitted {
		return fmt.Errorf("%s is %s: %w", orderID, o.status, ErrOrderNotCancelable)
	}
	o.status = OrderStatusCancelled
	// Children of a canceled parent go with it
	for _, child := range p.orders {
		if child.spec.ParentID == orderID && (child.status == OrderStatusPreSubmitted || child.status == OrderStatusSubmitted) {
			child.status = OrderStatusCancelled
		}
	}
	return nil
}

// OpenOrders lists working orders
func (p *PaperGateway) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	working := lo.Filter(lo.Values(p.orders), func(o *paperOrder, _ int) bool {
		return o.status == OrderStatusPreSubmitted || o.status == OrderStatusSubmitted
	})
	out := lo.Map(working, func(o *paperOrder, _ int) OpenOrder {
		return OpenOrder{
			OrderID:   o.id,
			ClientRef: o.spec.ClientRef,
			ParentID:  o.spec.ParentID,
			Contract:  o.contract,
			Side:      o.spec.Side,
			Type:      o.spec.Type,
			Quantity:  o.spec.Quantity,
			Status:    o.status,
		}
	})
	sort.Slice(out, func(i, j int) bool { return orderIDLess(out[i].OrderID, out[j].OrderID) })
	return out, nil
}

// orderIDLess orders numeric ids numerically
func orderIDLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
