package market

import "github.com/uhyunpark/hyperoptions/pkg/app/core/errs"

var (
	ErrBadParams     = errs.New(errs.KindValidation, "invalid market params")
	ErrOffGrid       = errs.New(errs.KindValidation, "expiry is not on the grid")
	ErrPastExpiry    = errs.New(errs.KindValidation, "expiry must be in the future")
	ErrBookExists    = errs.New(errs.KindValidation, "book already opened for expiry and strike")
	ErrUnknownBook   = errs.New(errs.KindValidation, "unknown book")
	ErrWrongOption   = errs.New(errs.KindValidation, "option does not belong to the book")
	ErrUnexpectedVal = errs.New(errs.KindValidation, "value attached to a call that takes none")
	ErrNotAdmin      = errs.New(errs.KindAuthorization, "caller is not the market admin")
	ErrFeeTooLow     = errs.New(errs.KindInsufficient, "attached value below opening fee")
	ErrValueMismatch = errs.New(errs.KindInsufficient, "attached value does not match quantity")
	ErrNoFees        = errs.New(errs.KindState, "no fees to collect")
	ErrNoOption      = errs.New(errs.KindState, "no option issued on the book yet")
)
