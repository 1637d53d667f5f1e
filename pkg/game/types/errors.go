package types

import "fmt"

// Every rejected transition maps to one of these error types. All failures
// are hard rejections; nothing is retried and no partial state survives.

// ErrNotFound indicates an unknown game identifier.
type ErrNotFound struct {
	ID uint32
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("game %d not found", e.ID)
}

// ErrUnauthorized indicates the caller is not the expected actor.
type ErrUnauthorized struct {
	Reason string
}

func (e *ErrUnauthorized) Error() string {
	return e.Reason
}

// ErrWrongState indicates the game is not in the state the operation requires.
type ErrWrongState struct {
	Op    string
	State State
}

func (e *ErrWrongState) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

// ErrWrongValue indicates the supplied escrow value does not match the wager.
type ErrWrongValue struct {
	Want uint64
	Got  uint64
}

func (e *ErrWrongValue) Error() string {
	return fmt.Sprintf("value must equal wager: want %d, got %d", e.Want, e.Got)
}

// ErrInsufficientFunds indicates the caller's deposited balance cannot
// cover the required escrow.
type ErrInsufficientFunds struct {
	Participant string
	Need        uint64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("%s has insufficient balance to escrow %d", e.Participant, e.Need)
}

// ErrVerificationFailed indicates a leaf, proof or full-board reveal did not
// reconstruct the stored root.
type ErrVerificationFailed struct {
	Reason string
}

func (e *ErrVerificationFailed) Error() string {
	return e.Reason
}

// ErrTooEarly indicates a timeout-gated resolver was invoked before its
// window elapsed.
type ErrTooEarly struct {
	Op string
}

func (e *ErrTooEarly) Error() string {
	return fmt.Sprintf("%s window has not elapsed", e.Op)
}

// ErrStopped indicates the emergency flag blocked the operation, or an
// emergency-only operation was called while the flag was unset.
type ErrStopped struct {
	Stopped bool
}

func (e *ErrStopped) Error() string {
	if e.Stopped {
		return "contract is stopped"
	}
	return "contract is not stopped"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

func IsUnauthorized(err error) bool {
	_, ok := err.(*ErrUnauthorized)
	return ok
}

func IsWrongState(err error) bool {
	_, ok := err.(*ErrWrongState)
	return ok
}

func IsWrongValue(err error) bool {
	_, ok := err.(*ErrWrongValue)
	return ok
}

func IsInsufficientFunds(err error) bool {
	_, ok := err.(*ErrInsufficientFunds)
	return ok
}

func IsVerificationFailed(err error) bool {
	_, ok := err.(*ErrVerificationFailed)
	return ok
}

func IsTooEarly(err error) bool {
	_, ok := err.(*ErrTooEarly)
	return ok
}

func IsStopped(err error) bool {
	_, ok := err.(*ErrStopped)
	return ok
}
