package models

import "time"

// AuditRecord is one append-only row written per executed trade.
type AuditRecord struct {
	Timestamp   time.Time
	Exchange    string
	Symbol      string
	Action      string
	MakerTaker  MakerTakerLabel
	Price       float64
	Quantity    float64
	ImpactRatio float64
}
