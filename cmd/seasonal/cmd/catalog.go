package cmd

import "github.com/eddiefleurent/seasonal_trader/internal/models"

// defaultSymbols is the futures list the rules were originally written against.
var defaultSymbols = []models.Symbol{
	{Ticker: "MHNG", Name: "Micro Henry Hub Natural Gas", Exchange: "NYMEX", Currency: "USD"},
	{Ticker: "SB", Name: "Sugar No. 11", Exchange: "NYBOT", Currency: "USD"},
	{Ticker: "LE", Name: "Live Cattle", Exchange: "CME", Currency: "USD"},
	{Ticker: "BUK100P", Name: "CBOE UK 100 Index", Exchange: "CEDX", Currency: "GBP"},
	{Ticker: "MES", Name: "Micro E-Mini S&P 500", Exchange: "CME", Currency: "USD"},
	{Ticker: "SI", Name: "Silver", Exchange: "COMEX", Currency: "USD"},
	{Ticker: "MGC", Name: "E-Micro Gold", Exchange: "COMEX", Currency: "USD"},
	{Ticker: "PA", Name: "Palladium", Exchange: "NYMEX", Currency: "USD"},
	{Ticker: "PL", Name: "Platinum", Exchange: "NYMEX", Currency: "USD"},
	{Ticker: "DAX", Name: "DAX 40 Index", Exchange: "EUREX", Currency: "EUR"},
	{Ticker: "MNQ", Name: "Micro E-Mini Nasdaq-100", Exchange: "CME", Currency: "USD"},
	{Ticker: "MCL", Name: "Micro WTI Crude Oil", Exchange: "NYMEX", Currency: "USD"},
	{Ticker: "CC", Name: "Cocoa", Exchange: "NYBOT", Currency: "USD"},
	{Ticker: "KC", Name: `Coffee "C"`, Exchange: "NYBOT", Currency: "USD"},
	{Ticker: "YK", Name: "Mini Sized Soybean", Exchange: "CBOT", Currency: "USD"},
	{Ticker: "YC", Name: "Mini Sized Corn", Exchange: "CBOT", Currency: "USD"},
	{Ticker: "YW", Name: "Mini Sized Wheat", Exchange: "CBOT", Currency: "USD"},
	{Ticker: "CT", Name: "Cotton No. 2", Exchange: "NYBOT", Currency: "USD"},
	{Ticker: "MHG", Name: "Micro Copper", Exchange: "COMEX", Currency: "USD"},
	{Ticker: "RB", Name: "RBOB Gasoline", Exchange: "NYMEX", Currency: "USD"},
	{Ticker: "HE", Name: "Lean Hogs", Exchange: "CME", Currency: "USD"},
	{Ticker: "OJ", Name: `FC Orange Juice "A"`, Exchange: "NYBOT", Currency: "USD"},
	{Ticker: "ZB", Name: "US Treasury Bond", Exchange: "CBOT", Currency: "USD"},
	{Ticker: "HO", Name: "Heating Oil", Exchange: "NYMEX", Currency: "USD"},
	{Ticker: "ZL", Name: "Soybean Oil", Exchange: "CBOT", Currency: "USD"},
	{Ticker: "GF", Name: "Feeder Cattle", Exchange: "CME", Currency: "USD"},
	{Ticker: "LBR", Name: "Lumber", Exchange: "CME", Currency: "USD"},
}
