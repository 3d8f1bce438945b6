package broker

import (
	"context"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Thursday
var paperNow = time.Date(2025, 1, 9, 15, 0, 0, 0, time.UTC)

func newTestPaper() *PaperGateway {
	return NewPaperGateway(decimal.NewFromInt(100000), []PaperInstrument{
		{
			Symbol:       "MES",
			Exchange:     "CME",
			Currency:     "USD",
			Multiplier:   "5",
			MinTick:      decimal.RequireFromString("0.25"),
			Price:        decimal.NewFromInt(6000),
			TimeZoneID:   "US/Central",
			SessionOpen:  "1700",
			SessionClose: "1600",
		},
		{Symbol: "MGC", Exchange: "COMEX", Multiplier: "10", Price: decimal.NewFromInt(2650)},
	}, func() time.Time { return paperNow })
}

func TestPaperGateway_ResolveContract(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	d, err := p.ResolveContract(ctx, "mes", "cme")
	require.NoError(t, err)
	assert.Equal(t, "MES", d.Contract.Symbol)
	assert.Equal(t, SecTypeContinuousFuture, d.Contract.SecType)
	assert.Equal(t, "5", d.Multiplier)
	assert.Equal(t, "US/Central", d.TimeZoneID)

	entries := strings.Split(d.TradingHours, ";")
	require.Len(t, entries, 8)
	assert.Equal(t, "20250108:1700-20250109:1600", entries[0])
	assert.Equal(t, "20250111:CLOSED", entries[3])
	assert.Equal(t, "20250112:CLOSED", entries[4])

	_, err = p.ResolveContract(ctx, "ZZZ", "CME")
	assert.ErrorIs(t, err, ErrContractNotFound)
}

func TestPaperGateway_BarsAndBalance(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()
	c := Contract{Symbol: "MES", Exchange: "CME"}

	bars, err := p.HistoricalBars(ctx, c, "1 D", "1 min")
	require.NoError(t, err)
	require.Len(t, bars, 60)
	assert.True(t, bars[len(bars)-1].Close.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, paperNow, bars[len(bars)-1].Time)

	p.SetPrice("MES", "CME", decimal.NewFromInt(6100))
	bars, err = p.HistoricalBars(ctx, c, "1 D", "1 min")
	require.NoError(t, err)
	assert.True(t, bars[len(bars)-1].Close.Equal(decimal.NewFromInt(6100)))

	bal, err := p.AccountBalance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(100000)))

	now, err := p.CurrentTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, paperNow, now)
}

func TestPaperGateway_BracketHoldsParentUntilChildTransmits(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()
	c := Contract{Symbol: "MES", Exchange: "CME"}

	entry, err := p.PlaceOrder(ctx, c, OrderSpec{
		Side: SideBuy, Type: OrderTypeLimit, Quantity: 2,
		LimitPrice: decimal.NewFromInt(6000), TIF: TIFGoodTillCancel, Transmit: false,
	})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPreSubmitted, entry.Status)

	positions, err := p.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	stop, err := p.PlaceOrder(ctx, c, OrderSpec{
		Side: SideSell, Type: OrderTypeStop, Quantity: 2,
		StopPrice: decimal.NewFromInt(5990), ParentID: entry.OrderID,
		TIF: TIFGoodTillCancel, Transmit: true,
	})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusSubmitted, stop.Status)

	positions, err = p.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, positions[0].AvgCost.Equal(decimal.NewFromInt(6000)))

	open, err := p.OpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, stop.OrderID, open[0].OrderID)
	assert.Equal(t, entry.OrderID, open[0].ParentID)
}

func TestPaperGateway_MarketOrderFlattens(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()
	c := Contract{Symbol: "MGC", Exchange: "COMEX"}

	_, err := p.PlaceOrder(ctx, c, OrderSpec{Side: SideSell, Type: OrderTypeMarket, Quantity: 3, Transmit: true})
	require.NoError(t, err)
	positions, err := p.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(-3)))

	_, err = p.PlaceOrder(ctx, c, OrderSpec{Side: SideBuy, Type: OrderTypeMarket, Quantity: 3, Transmit: true})
	require.NoError(t, err)
	positions, err = p.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPaperGateway_CancelOrder(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()
	c := Contract{Symbol: "MES", Exchange: "CME"}

	parent, err := p.PlaceOrder(ctx, c, OrderSpec{Side: SideBuy, Type: OrderTypeLimit, Quantity: 1,
		LimitPrice: decimal.NewFromInt(6000)})
	require.NoError(t, err)

	require.NoError(t, p.CancelOrder(ctx, parent.OrderID))
	open, err := p.OpenOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.ErrorIs(t, p.CancelOrder(ctx, parent.OrderID), ErrOrderNotCancelable)
	assert.ErrorIs(t, p.CancelOrder(ctx, "999"), ErrOrderNotFound)

	_, err = p.PlaceOrder(ctx, c, OrderSpec{Side: SideSell, Type: OrderTypeStop, Quantity: 1,
		ParentID: parent.OrderID, Transmit: true})
	assert.Error(t, err, "child of a canceled parent must be rejected")
}

func TestPaperGateway_RejectsBadOrders(t *testing.T) {
	p := newTestPaper()
	ctx := context.Background()

	_, err := p.PlaceOrder(ctx, Contract{Symbol: "MES", Exchange: "CME"}, OrderSpec{Side: SideBuy, Type: OrderTypeMarket})
	assert.Error(t, err)

	_, err = p.PlaceOrder(ctx, Contract{Symbol: "XX", Exchange: "CME"}, OrderSpec{Side: SideBuy, Quantity: 1})
	assert.ErrorIs(t, err, ErrContractNotFound)

	_, err = p.PlaceOrder(ctx, Contract{Symbol: "MES", Exchange: "CME"}, OrderSpec{Side: SideBuy, Quantity: 1, ParentID: "77"})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderSide_Opposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestOrderIDLess(t *testing.T) {
	assert.True(t, orderIDLess("2", "10"))
	assert.False(t, orderIDLess("10", "9"))
}
