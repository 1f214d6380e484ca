package client

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when the server has no such dataset.
	ErrNotFound = errors.New("dataset not found")
	// ErrInvalidData is returned when the dataset's records cannot produce a
	// matrix (parse failure, missing field, empty input).
	ErrInvalidData = errors.New("invalid dataset")
	// ErrDegenerate is returned when a feature column has zero range and the
	// server runs with the error policy.
	ErrDegenerate = errors.New("degenerate feature column")
	// ErrThrottled is returned when the server's rate limit rejected the call.
	ErrThrottled = errors.New("rate limited")
)

// translateError maps gRPC status codes onto the package sentinels. The
// original status error stays reachable through errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %w", ErrDegenerate, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %w", ErrThrottled, err)
	default:
		return err
	}
}
