// Package models defines the core domain entities: deals, filter criteria, and terminal status.
package models

import (
	"errors"
	"fmt"
	"time"
)

// TradeType is the side of an executed deal.
type TradeType int

const (
	Buy  TradeType = 0
	Sell TradeType = 1
)

func (t TradeType) String() string {
	switch t {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("TradeType(%d)", int(t))
	}
}

// Deal is one executed trade fill as reported by the MT5 bridge.
// NetProfit already includes commission and swap.
type Deal struct {
	Ticket     int64     `json:"ticket" yaml:"ticket"`
	Time       time.Time `json:"time" yaml:"time"`
	Type       TradeType `json:"type" yaml:"type"`
	Volume     float64   `json:"volume" yaml:"volume"`
	Price      float64   `json:"price" yaml:"price"`
	NetProfit  float64   `json:"net_profit" yaml:"net_profit"`
	Commission float64   `json:"commission" yaml:"commission"`
	Swap       float64   `json:"swap" yaml:"swap"`
	Symbol     string    `json:"symbol" yaml:"symbol"`
	EAID       string    `json:"ea_id" yaml:"ea_id"`
}

// IsWin reports whether the deal counts as a winning trade.
// Break-even deals are wins.
func (d *Deal) IsWin() bool {
	return d.NetProfit >= 0
}

// Costs returns commission plus swap.
func (d *Deal) Costs() float64 {
	return d.Commission + d.Swap
}

// Validate checks deal field constraints.
func (d *Deal) Validate() error {
	if d.Ticket <= 0 {
		return errors.New("deal ticket must be positive")
	}
	if d.Time.IsZero() {
		return errors.New("deal time must be set")
	}
	if d.Type != Buy && d.Type != Sell {
		return fmt.Errorf("deal type %d is not BUY or SELL", int(d.Type))
	}
	if d.Symbol == "" {
		return errors.New("deal symbol must not be empty")
	}
	if d.EAID == "" {
		return errors.New("deal ea_id must not be empty")
	}
	if d.Volume < 0 {
		return errors.New("deal volume must not be negative")
	}
	return nil
}

// TerminalStatus mirrors the bridge's connection status payload.
type TerminalStatus struct {
	Connected    bool           `json:"connected"`
	TerminalInfo map[string]any `json:"terminal_info"`
}
