package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/commissar/internal/enforce"
	"github.com/solatis/commissar/internal/types"
)

// Malformed records map to INVALID_ARGUMENT.
// A missing store maps to UNAVAILABLE.
// Context timeouts map to DEADLINE_EXCEEDED.
// Anything else gets fallback.
func toStatus(err error, fallback codes.Code) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrInvalidLiteral),
		errors.Is(err, types.ErrUnknownAssociation),
		errors.Is(err, types.ErrRecordNotFound):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, enforce.ErrNoStore):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(fallback, err.Error())
	}
}
