package domain

// ConfirmFunc asks the user to approve a destructive action described by
// prompt
type ConfirmFunc func(prompt string) bool

// Confirm returns ErrNotConfirmed unless fn approves the action. A nil fn
// never approves.
func Confirm(fn ConfirmFunc, prompt string) error {
	if fn == nil || !fn(prompt) {
		return ErrNotConfirmed
	}
	return nil
}
