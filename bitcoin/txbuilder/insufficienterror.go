// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/BoostyLabs/runelaunch/bitcoin"
)

type balanceErrorType string

type causerSign string

const (
	// InsufficientErrorTypeBitcoin defines insufficient bitcoin balance error type.
	InsufficientErrorTypeBitcoin balanceErrorType = "bitcoin"
	// InsufficientErrorTypeRune defines insufficient rune balance error type.
	InsufficientErrorTypeRune balanceErrorType = "rune"

	// CauserSender defines that the sender caused this error type.
	CauserSender causerSign = "sender"
	// CauserFeePayer defines that the fee-payer caused this error type.
	CauserFeePayer causerSign = "fee-payer"
)

var (
	// ErrMessageTooLarge defines runestone which does not fit into standard null-data output.
	ErrMessageTooLarge = errors.New("runestone is greater than maximum standard OP_RETURN size")
	// ErrDustValue defines output with value below dust threshold.
	ErrDustValue = errors.New("dust value")
)

// InsufficientError is the error type to describe insufficient balance errors with details.
type InsufficientError struct {
	Type   balanceErrorType
	Need   *big.Int
	Have   *big.Int
	Causer causerSign
}

// NewInsufficientError is a constructor for InsufficientError.
func NewInsufficientError(type_ balanceErrorType, need, have *big.Int) *InsufficientError {
	return &InsufficientError{type_, need, have, ""}
}

// Error returns error description.
func (e *InsufficientError) Error() string {
	var errMsg = fmt.Sprintf("insufficient %s balance", e.Type)

	if e.Have != nil && e.Need != nil {
		errMsg += fmt.Sprintf(": need %s, have %s", e.Need, e.Have)
	}

	if e.Causer != "" {
		errMsg += " (" + string(e.Causer) + ")"
	}

	return errMsg
}

// Is matches the balance sentinel of the same type.
func (e *InsufficientError) Is(target error) bool {
	switch e.Type {
	case InsufficientErrorTypeBitcoin:
		return target == bitcoin.ErrInsufficientNativeBalance
	case InsufficientErrorTypeRune:
		return target == bitcoin.ErrInsufficientRuneBalance
	default:
		return false
	}
}

// setCauser updates InsufficientError with provided causer.
func (e *InsufficientError) setCauser(causer causerSign) *InsufficientError {
	e.Causer = causer
	return e
}

// withCauser marks insufficient balance error with causer, other errors are returned as is.
func withCauser(err error, causer causerSign) error {
	var insufficientErr *InsufficientError
	if errors.As(err, &insufficientErr) {
		return insufficientErr.setCauser(causer)
	}

	return err
}

// DustError describes output which value is below the dust threshold of its script.
type DustError struct {
	Value     int64
	Threshold int64
}

// Error returns error description.
func (e *DustError) Error() string {
	return fmt.Sprintf("dust value: %d is below threshold %d", e.Value, e.Threshold)
}

// Is makes every DustError match ErrDustValue.
func (e *DustError) Is(target error) bool {
	return target == ErrDustValue
}
