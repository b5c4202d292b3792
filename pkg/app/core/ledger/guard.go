package ledger

import "github.com/uhyunpark/hyperoptions/pkg/app/core/errs"

// Guard rejects recursive entry into a component while one of its entry
// points is still running. The zero value is ready to use.
type Guard struct {
	entered bool
}

// Enter marks the component busy. The returned release must be deferred.
func (g *Guard) Enter() (release func(), err error) {
	if g.entered {
		return nil, errs.ErrReentrant
	}
	g.entered = true
	return func() { g.entered = false }, nil
}
