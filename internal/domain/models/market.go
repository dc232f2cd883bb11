package models

import "time"

// BookSnapshot is a normalized top-of-book view taken from one feed message.
// Snapshots are immutable; each message produces a fresh value that supersedes
// the previous one.
type BookSnapshot struct {
	Exchange   string
	Symbol     string
	BestBid    float64
	BestBidQty float64
	BestAsk    float64
	BestAskQty float64
	Timestamp  time.Time
}

// Mid returns the mid price between best bid and best ask.
func (s *BookSnapshot) Mid() float64 {
	return (s.BestBid + s.BestAsk) / 2
}

// Spread returns the absolute bid/ask spread.
func (s *BookSnapshot) Spread() float64 {
	return s.BestAsk - s.BestBid
}
