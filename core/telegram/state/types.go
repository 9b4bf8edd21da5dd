package state

import tele "gopkg.in/telebot.v4"

// State identifies a finite-state-machine step used in conversations.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Session stores conversation state and temporary data for a user.
type Session struct {
	State    State
	TempData map[string]any
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Handle binds h to st. Text from users in st is routed to h.
	Handle(st State, h tele.HandlerFunc)

	Get(userID int64) Session
	SetState(userID int64, st State)
	GetState(userID int64) State
	ClearState(userID int64)
	Clear(userID int64)

	SetTemp(userID int64, key string, value any)
	GetTemp(userID int64, key string) (any, bool)
	GetTempInt64(userID int64, key string) (int64, bool)
	ClearTemp(userID int64, key string)

	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

const passKey = "fsm_pass"

// Pass marks the current update as not consumed by the state handler,
// so routing continues with commands and the text fallback.
func Pass(c tele.Context) error {
	c.Set(passKey, true)
	return nil
}

// Passed reports whether the state handler called Pass for this update.
func Passed(c tele.Context) bool {
	v, _ := c.Get(passKey).(bool)
	return v
}
