package parser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/TenderRAG/internal/config"
)

var errPageTimeout = errors.New("page extraction timeout")

// pageTimeout is a var so tests can shorten it.
var pageTimeout = config.PageExtractTimeout

// protectExtract runs one page extraction with a watchdog and a panic guard.
// The pdf readers panic on some malformed streams and can spin on others.
func protectExtract[T any](ctx context.Context, extract func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				resChan <- result{zero, fmt.Errorf("extraction panic: %v", r)}
			}
		}()
		v, err := extract()
		resChan <- result{v, err}
	}()

	timer := time.NewTimer(pageTimeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-resChan:
		return r.value, r.err
	case <-timer.C:
		return zero, errPageTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// openGuarded converts reader constructor panics into errors.
func openGuarded[R any](open func() (R, error)) (reader R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open panic: %v", r)
		}
	}()
	return open()
}
