package jsbridge

import (
	"context"

	"github.com/wippyai/jsbridge/bridge"
)

// Run creates a bridge, evaluates src on its loop and drives the loop until
// every timer the script scheduled has fired. The bridge is closed before
// Run returns, so function and iterator proxies in the result are already
// released.
func Run(ctx context.Context, src string, opts ...bridge.Option) (any, error) {
	b, err := bridge.New(opts...)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	var (
		res     any
		evalErr error
	)
	if err := b.Loop().Submit(func() { res, evalErr = b.Eval(ctx, src) }); err != nil {
		return nil, err
	}
	if err := b.Loop().Run(ctx); err != nil {
		return nil, err
	}
	return res, evalErr
}
