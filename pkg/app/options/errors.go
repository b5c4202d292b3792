package options

import "github.com/uhyunpark/hyperoptions/pkg/app/core/errs"

var (
	ErrMalformed      = errs.New(errs.KindValidation, "malformed transaction")
	ErrUnknownTarget  = errs.New(errs.KindValidation, "unknown target")
	ErrUnsupported    = errs.New(errs.KindValidation, "transaction type not supported by target")
	ErrUnexpectedVal  = errs.New(errs.KindValidation, "value not accepted by target")
	ErrBadSignature   = errs.New(errs.KindAuthorization, "bad signature")
	ErrNonceUsed      = errs.New(errs.KindState, "nonce already used")
	ErrFaucetDisabled = errs.New(errs.KindState, "faucet disabled")
	ErrMempoolFull    = errs.New(errs.KindInsufficient, "mempool full")
)
