package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"meta-ads/internal/pkg/errs"
)

// Error taxonomy of the escrow core. Specific errors wrap one of the base
// kinds so callers can branch on the kind with errors.Is.
var (
	ErrInvalidInput        = errs.New("invalid input")
	ErrConflict            = errs.New("already exists")
	ErrNotFound            = errs.New("not found")
	ErrInsufficientDeposit = errs.New("insufficient deposit")
	ErrUnauthorized        = errs.New("unauthorized")
	ErrAlreadySettled      = errs.New("agreement already settled")
	ErrWindowNotElapsed    = errs.New("display window has not elapsed")
	ErrAlreadyInitialized  = errs.New("contract is already initialized")

	ErrCreativeNotFound  = errs.Wrap(ErrNotFound, "creative")
	ErrAdSpotNotFound    = errs.Wrap(ErrNotFound, "ad spot")
	ErrAgreementNotFound = errs.Wrap(ErrNotFound, "agreement")
	ErrContractNotFound  = errs.Wrap(ErrNotFound, "contract state")

	ErrUnauthorizedCreativeUse = errs.Wrap(ErrUnauthorized, "creative belongs to another account")
)

// InsufficientDepositError reports the attached and required amounts when a
// deposit does not cover the spot price.
type InsufficientDepositError struct {
	Attached decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientDepositError) Error() string {
	return fmt.Sprintf("deposit is too small: attached %s, required %s", e.Attached, e.Required)
}

func (e *InsufficientDepositError) Is(target error) bool {
	return target == ErrInsufficientDeposit
}

func invalid(format string, args ...any) error {
	return errs.Wrapf(ErrInvalidInput, format, args...)
}
