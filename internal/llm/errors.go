package llm

import (
	"context"
	"errors"

	"github.com/newthinker/prism/internal/core"
)

// WrapError classifies a provider error.
func WrapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.WrapError(core.ErrLLMTimeout, err)
	}
	return core.WrapError(core.ErrLLMFailed, err)
}

// DefaultMaxTokens applies when a request leaves MaxTokens unset.
const DefaultMaxTokens = 1024
