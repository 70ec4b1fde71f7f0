package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/phrazzld/scry-practice/internal/generation"
	"google.golang.org/genai"
)

// classifyError maps an SDK or transport error onto the generation error
// taxonomy. Rate limits, server errors, timeouts and network failures are
// transient; other client errors are not.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}

	if code, ok := apiErrorCode(err); ok {
		switch {
		case code == http.StatusTooManyRequests,
			code == http.StatusRequestTimeout,
			code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: gemini returned %d: %v", generation.ErrTransientFailure, code, err)
		case code >= http.StatusBadRequest:
			return fmt.Errorf("%w: gemini returned %d: %v", generation.ErrInvalidRequest, code, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
}

// apiErrorCode extracts the HTTP status from a genai.APIError, which the SDK
// may return by value or by pointer.
func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
