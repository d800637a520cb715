package chain

import (
	"fmt"
)

// ErrorCode identifies a kind of chain rule violation.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrDuplicateBlock indicates a block with the same hash has already
	// been processed or is already buffered in the orphan pool.
	ErrDuplicateBlock ErrorCode = iota

	// ErrOrphanBlock indicates the block's parent is unknown to the
	// ledger state and to the orphan pool. It is a routing signal, not a
	// validation failure.
	ErrOrphanBlock

	// ErrInvalidAncestry indicates the block names a parent that exists
	// but does not match the block's height or chain linkage.
	ErrInvalidAncestry

	// ErrTimestampTooOld indicates the block's timestamp is not strictly
	// greater than the median of its recent ancestors.
	ErrTimestampTooOld

	// ErrTimestampTooFarInFuture indicates the block's timestamp exceeds
	// the node's adjusted clock by more than the allowed tolerance.
	ErrTimestampTooFarInFuture

	// ErrDifficultyTooLow indicates the block's proof-of-work hash does
	// not meet the required target difficulty.
	ErrDifficultyTooLow

	// ErrDifficultyMismatch indicates the block's claimed accumulated
	// difficulty does not match the value the chain computed for it.
	ErrDifficultyMismatch

	// ErrCheckpointUnderflow indicates a rewind was requested past the
	// number of recorded checkpoints.
	ErrCheckpointUnderflow

	// ErrCorruptTree indicates a commitment tree failed its structural
	// integrity check. This is fatal backend corruption.
	ErrCorruptTree
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:          "ErrDuplicateBlock",
	ErrOrphanBlock:             "ErrOrphanBlock",
	ErrInvalidAncestry:         "ErrInvalidAncestry",
	ErrTimestampTooOld:         "ErrTimestampTooOld",
	ErrTimestampTooFarInFuture: "ErrTimestampTooFarInFuture",
	ErrDifficultyTooLow:        "ErrDifficultyTooLow",
	ErrDifficultyMismatch:      "ErrDifficultyMismatch",
	ErrCheckpointUnderflow:     "ErrCheckpointUnderflow",
	ErrCorruptTree:             "ErrCorruptTree",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block failed due to one of the chain rules. The caller
// can use type assertions to determine if a failure was specifically due
// to a rule violation and access the ErrorCode field to ascertain the
// specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err is a RuleError with the given ErrorCode.
func IsErrorCode(err error, code ErrorCode) bool {
	ruleErr, ok := err.(RuleError)
	return ok && ruleErr.ErrorCode == code
}
