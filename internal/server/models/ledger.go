package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
	DirectionBuy     Direction = "buy"
	DirectionStake   Direction = "stake"
	DirectionUnstake Direction = "unstake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusMocked    Status = "mocked"
)

// LedgerEntry is one transfer known to the server, either initiated here or
// picked up from chain history. TxHash is globally unique.
type LedgerEntry struct {
	ID        string
	OwnerID   string
	From      string
	To        string
	TxHash    string
	Direction Direction
	Status    Status
	Amount    decimal.Decimal // ether
	Chain     string
	CreatedAt time.Time
}
