package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TimeInForce string
type OrderStatus string
type AutoSize string

const (
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForcePOC TimeInForce = "poc"
	TimeInForceFOK TimeInForce = "fok"

	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFinished OrderStatus = "finished"

	AutoSizeCloseLong  AutoSize = "close_long"
	AutoSizeCloseShort AutoSize = "close_short"
)

// Decimal принимает числа и строки; пустая строка и null читаются как ноль.
type Decimal struct {
	decimal.Decimal
}

func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

func MustDecimal(s string) Decimal {
	return Decimal{Decimal: decimal.RequireFromString(s)}
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "null", `""`:
		d.Decimal = decimal.Zero
		return nil
	}
	return d.Decimal.UnmarshalJSON(data)
}

type Contract struct {
	Name                  string  `json:"name"`
	Type                  string  `json:"type"`
	QuantoMultiplier      Decimal `json:"quanto_multiplier"`
	LeverageMin           Decimal `json:"leverage_min"`
	LeverageMax           Decimal `json:"leverage_max"`
	MaintenanceRate       Decimal `json:"maintenance_rate"`
	MarkType              string  `json:"mark_type"`
	LastPrice             Decimal `json:"last_price"`
	MarkPrice             Decimal `json:"mark_price"`
	IndexPrice            Decimal `json:"index_price"`
	FundingRate           Decimal `json:"funding_rate"`
	FundingRateIndicative Decimal `json:"funding_rate_indicative"`
	FundingInterval       int64   `json:"funding_interval"`
	FundingNextApply      int64   `json:"funding_next_apply"`
	OrderPriceRound       Decimal `json:"order_price_round"`
	MarkPriceRound        Decimal `json:"mark_price_round"`
	OrderSizeMin          int64   `json:"order_size_min"`
	OrderSizeMax          int64   `json:"order_size_max"`
	OrderPriceDeviate     Decimal `json:"order_price_deviate"`
	MakerFeeRate          Decimal `json:"maker_fee_rate"`
	TakerFeeRate          Decimal `json:"taker_fee_rate"`
	RiskLimitBase         Decimal `json:"risk_limit_base"`
	RiskLimitStep         Decimal `json:"risk_limit_step"`
	RiskLimitMax          Decimal `json:"risk_limit_max"`
	OrdersLimit           int64   `json:"orders_limit"`
	TradeSize             int64   `json:"trade_size"`
	PositionSize          int64   `json:"position_size"`
	LongUsers             int64   `json:"long_users"`
	ShortUsers            int64   `json:"short_users"`
	InDelisting           bool    `json:"in_delisting"`
	EnableBonus           bool    `json:"enable_bonus"`
	EnableCredit          bool    `json:"enable_credit"`
	CreateTime            float64 `json:"create_time"`
	ConfigChangeTime      float64 `json:"config_change_time"`
}

type FuturesOrder struct {
	ID           uint64      `json:"id"`
	User         uint64      `json:"user"`
	CreateTime   float64     `json:"create_time"`
	FinishTime   float64     `json:"finish_time,omitempty"`
	FinishAs     string      `json:"finish_as,omitempty"`
	Status       OrderStatus `json:"status"`
	Contract     string      `json:"contract"`
	Size         int64       `json:"size"`
	Iceberg      int64       `json:"iceberg"`
	Price        Decimal     `json:"price"`
	IsClose      bool        `json:"is_close"`
	IsReduceOnly bool        `json:"is_reduce_only"`
	IsLiq        bool        `json:"is_liq"`
	Tif          TimeInForce `json:"tif"`
	Left         int64       `json:"left"`
	FillPrice    Decimal     `json:"fill_price"`
	Text         string      `json:"text"`
	Tkfr         Decimal     `json:"tkfr"`
	Mkfr         Decimal     `json:"mkfr"`
	Refu         uint64      `json:"refu"`
	AutoSize     AutoSize    `json:"auto_size,omitempty"`
	StpID        uint64      `json:"stp_id"`
	StpAct       string      `json:"stp_act"`
	AmendText    string      `json:"amend_text"`
	BizInfo      string      `json:"biz_info"`
}

func (o FuturesOrder) Filled() int64 {
	return o.Size - o.Left
}

func (o FuturesOrder) Created() time.Time {
	return floatSeconds(o.CreateTime)
}

type OrderRequest struct {
	Contract   string
	Size       int64
	Price      decimal.Decimal
	PriceTick  decimal.Decimal
	Close      bool
	ReduceOnly bool
	AutoSize   AutoSize
	Tif        TimeInForce
	Text       string
}

type Position struct {
	User            uint64  `json:"user"`
	Contract        string  `json:"contract"`
	Size            int64   `json:"size"`
	Leverage        Decimal `json:"leverage"`
	RiskLimit       Decimal `json:"risk_limit"`
	LeverageMax     Decimal `json:"leverage_max"`
	MaintenanceRate Decimal `json:"maintenance_rate"`
	Value           Decimal `json:"value"`
	Margin          Decimal `json:"margin"`
	EntryPrice      Decimal `json:"entry_price"`
	LiqPrice        Decimal `json:"liq_price"`
	MarkPrice       Decimal `json:"mark_price"`
	UnrealisedPnl   Decimal `json:"unrealised_pnl"`
	RealisedPnl     Decimal `json:"realised_pnl"`
	Mode            string  `json:"mode"`
	UpdateTime      int64   `json:"update_time"`
}

type Account struct {
	Total          Decimal `json:"total"`
	UnrealisedPnl  Decimal `json:"unrealised_pnl"`
	PositionMargin Decimal `json:"position_margin"`
	OrderMargin    Decimal `json:"order_margin"`
	Available      Decimal `json:"available"`
	Point          Decimal `json:"point"`
	Currency       string  `json:"currency"`
	InDualMode     bool    `json:"in_dual_mode"`
}

// Candlestick общий формат свечи для REST (sum) и WS (a, n, w).
type Candlestick struct {
	T      int64   `json:"t"`
	V      int64   `json:"v"`
	C      Decimal `json:"c"`
	H      Decimal `json:"h"`
	L      Decimal `json:"l"`
	O      Decimal `json:"o"`
	A      Decimal `json:"a"`
	Sum    Decimal `json:"sum"`
	N      string  `json:"n"`
	Closed bool    `json:"w"`
}

func (c Candlestick) Time() time.Time {
	return time.Unix(c.T, 0).UTC()
}

// Interval и Contract разбирают поле n вида "1m_BTC_USDT".
func (c Candlestick) Interval() string {
	interval, _, _ := strings.Cut(c.N, "_")
	return interval
}

func (c Candlestick) Contract() string {
	_, contract, ok := strings.Cut(c.N, "_")
	if !ok {
		return c.N
	}
	return contract
}

func floatSeconds(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
