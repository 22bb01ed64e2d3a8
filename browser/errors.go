package browser

import (
	"context"
	"errors"

	"github.com/use-agent/harvest/models"
)

// Classify wraps a raw driver error into a typed HarvestError so callers
// can map it to a status. code is used when the error is not a timeout or
// cancellation.
func Classify(err error, code, msg string) *models.HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return models.NewHarvestError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeCanceled, "harvest canceled", err)
	default:
		return models.NewHarvestError(code, msg, err)
	}
}
