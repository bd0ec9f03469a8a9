package labelcodes

import (
	"context"
	"errors"
	"fmt"
)

// ErrAttemptsExhausted is returned by Retry when fn never reports completion.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Attempt runs one try. Returning done=true stops the loop; a non-nil error
// stops it immediately and is returned as-is.
type Attempt func(ctx context.Context, attempt int) (done bool, err error)

// Retry calls fn up to maxAttempts times. Attempts are numbered from 1.
func Retry(ctx context.Context, maxAttempts int, fn Attempt) error {
	if maxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	if fn == nil {
		return errors.New("retry attempt function required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrAttemptsExhausted
}
