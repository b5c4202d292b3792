package option

import "github.com/uhyunpark/hyperoptions/pkg/app/core/errs"

var (
	ErrBadTerms           = errs.New(errs.KindValidation, "invalid option terms")
	ErrBadQuantity        = errs.New(errs.KindValidation, "quantity must be positive")
	ErrZeroAddress        = errs.New(errs.KindValidation, "zero address")
	ErrWrongKind          = errs.New(errs.KindValidation, "operation not available for this option kind")
	ErrExcessValue        = errs.New(errs.KindValidation, "attached value exceeds quantity")
	ErrNotOwner           = errs.New(errs.KindAuthorization, "caller does not own the option")
	ErrNotWriter          = errs.New(errs.KindAuthorization, "caller has no written position")
	ErrNotAuthorized      = errs.New(errs.KindAuthorization, "caller may not liquidate")
	ErrInsufficientFree   = errs.New(errs.KindInsufficient, "insufficient unlocked option balance")
	ErrInsufficientLocked = errs.New(errs.KindInsufficient, "insufficient locked option balance")
	ErrAllowance          = errs.New(errs.KindInsufficient, "insufficient option allowance")
	ErrMissingCollateral  = errs.New(errs.KindInsufficient, "collateral not delivered")
	ErrMissingValue       = errs.New(errs.KindInsufficient, "attached value below quantity")
	ErrExpired            = errs.New(errs.KindState, "option has expired")
	ErrNotExpired         = errs.New(errs.KindState, "option has not expired")
	ErrWindowClosed       = errs.New(errs.KindState, "exercise window closed")
	ErrWindowOpen         = errs.New(errs.KindState, "exercise window still open")
	ErrGracePending       = errs.New(errs.KindState, "liquidation grace has not elapsed")
	ErrBadStatus          = errs.New(errs.KindState, "status does not allow the call")
	ErrAlreadySettled     = errs.New(errs.KindState, "writer already settled")
)
