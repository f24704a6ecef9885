// Package session keeps per-user conversation state in memory: the current
// dialog step, the bearer token pair, and the draft being collected.
package session

import (
	"github.com/m3rciful/spendbot/internal/api"
)

// Step identifies a dialog step of the conversation state machine.
type Step string

// The closed set of dialog steps. Every update handler dispatches on exactly
// one of these; an unknown step is treated as StepIdle.
const (
	StepIdle Step = "idle"

	StepLoginCreds    Step = "login_creds"
	StepRegisterCreds Step = "register_creds"

	StepAddAmount      Step = "add_amount"
	StepAddDescription Step = "add_description"
	StepAddCategory    Step = "add_category"

	StepUpdateSelect   Step = "update_select"
	StepUpdateField    Step = "update_field"
	StepUpdateValue    Step = "update_value"
	StepUpdateCategory Step = "update_category"

	StepDeleteSelect Step = "delete_select"
)

// Draft accumulates the fields of a multi-step flow. Add flows fill Amount,
// Description and CategoryID; update flows additionally carry the target
// expense snapshot and the field being edited.
type Draft struct {
	Amount      float64
	Description string
	Date        string
	CategoryID  int64

	// Target is the expense chosen in an update flow, resolved from its
	// display index against a fresh listing.
	Target api.Expense

	// Field names the expense field being edited: "amount", "description",
	// "date" or "category".
	Field string

	// Categories caches the selection keyboard contents for the duration of
	// one flow. Discarded together with the rest of the draft.
	Categories []api.Category
}

// Session is the full conversation state of one user.
type Session struct {
	Step   Step
	Tokens api.TokenPair
	Draft  Draft
}

// LoggedIn reports whether the session holds an access token.
func (s *Session) LoggedIn() bool {
	return s.Tokens.Access != ""
}

// StartFlow enters the given step with a clean draft.
func (s *Session) StartFlow(step Step) {
	s.Draft = Draft{}
	s.Step = step
}

// EndFlow returns to idle and discards the draft. Tokens are kept.
func (s *Session) EndFlow() {
	s.Draft = Draft{}
	s.Step = StepIdle
}

// Logout drops the tokens and any in-flight flow.
func (s *Session) Logout() {
	*s = Session{Step: StepIdle}
}
