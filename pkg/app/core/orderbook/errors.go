package orderbook

import "github.com/uhyunpark/hyperoptions/pkg/app/core/errs"

var (
	ErrNotOwner        = errs.New(errs.KindAuthorization, "caller does not own the book")
	ErrNotIssuer       = errs.New(errs.KindAuthorization, "caller did not issue the order")
	ErrBadQuantity     = errs.New(errs.KindValidation, "quantity is not a positive multiple of the minimum")
	ErrBadPrice        = errs.New(errs.KindValidation, "price is not a positive multiple of the tick")
	ErrBadConfig       = errs.New(errs.KindValidation, "invalid book config")
	ErrUnknownOrder    = errs.New(errs.KindValidation, "unknown order")
	ErrNoSuchLevel     = errs.New(errs.KindValidation, "no such level")
	ErrOrderNotAlive   = errs.New(errs.KindState, "order is not alive")
	ErrOrderNotExpired = errs.New(errs.KindState, "order has not expired")
	ErrBookExpired     = errs.New(errs.KindState, "book expiry has passed")
	ErrTooManyMatches  = errs.New(errs.KindValidation, "order would touch too many resting orders")
)
