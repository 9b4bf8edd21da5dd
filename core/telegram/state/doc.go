// Package state keeps per-user conversation state for multi-step flows
// (quiz, profile, assistant chat) and dispatches text to the handler bound to it.
package state
