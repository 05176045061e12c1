package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/adstudio-backend/internal/pkg/retry"
	"github.com/yungbote/adstudio-backend/internal/platform/httpx"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

// Request is one text completion. Temperature is always sent; MaxTokens <= 0
// leaves the provider default.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON response body when it supports it.
	JSON bool
}

// Completer is a hosted text model.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type ErrorKind string

const (
	// KindTransient errors are worth retrying.
	KindTransient ErrorKind = "transient"
	// KindPermanent errors will fail the same way again.
	KindPermanent ErrorKind = "permanent"
	// KindExhausted is a transient failure that outlived the retry budget.
	KindExhausted ErrorKind = "exhausted"
)

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrBlocked       = errors.New("response blocked by safety filter")
)

type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsRetryable(err) {
		return KindTransient
	}
	return KindPermanent
}

// IsRetryable treats empty and safety-blocked responses as transient, along
// with retryable HTTP statuses and timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrBlocked) {
		return true
	}
	return httpx.IsRetryableError(err)
}

// Call runs fn under policy and returns a typed *Error on failure.
func Call(ctx context.Context, policy retry.Policy, log *logger.Logger, provider string, fn func(ctx context.Context) (string, error)) (string, error) {
	var out string
	err := retry.Do(ctx, policy, retry.Hooks{
		Retryable: IsRetryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			if log != nil {
				log.Warn("LLM request retrying",
					"provider", provider,
					"attempt", attempt,
					"max_attempts", policy.Attempts,
					"sleep", delay.String(),
					"error", err.Error(),
				)
			}
		},
	}, func(ctx context.Context) error {
		text, err := fn(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return ErrEmptyResponse
		}
		out = text
		return nil
	})
	if err == nil {
		return out, nil
	}
	var ex *retry.ExhaustedError
	switch {
	case errors.As(err, &ex):
		return "", &Error{Kind: KindExhausted, Provider: provider, Err: ex}
	case errors.Is(err, context.Canceled):
		return "", err
	default:
		var typed *Error
		if errors.As(err, &typed) {
			return "", err
		}
		return "", &Error{Kind: KindPermanent, Provider: provider, Err: err}
	}
}
