package models

import "time"

// Flow tags which two-step exchange a one-time code belongs to.
type Flow string

const (
	FlowLogin         Flow = "login"
	FlowReset         Flow = "reset"
	FlowLoginMnemonic Flow = "login-mnemonic"
)

// Valid reports whether f is one of the known flows.
func (f Flow) Valid() bool {
	switch f {
	case FlowLogin, FlowReset, FlowLoginMnemonic:
		return true
	}
	return false
}

// Challenge is the outstanding one-time code of an account. The zero value
// means no challenge is issued; otherwise all three fields are set.
type Challenge struct {
	Flow      Flow
	Code      string
	ExpiresAt time.Time
}

func (c Challenge) IsIssued() bool {
	return c.Flow != "" && c.Code != "" && !c.ExpiresAt.IsZero()
}
