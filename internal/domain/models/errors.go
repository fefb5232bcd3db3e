package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound means no complete (model, scaler) pair exists for the instrument.
	ErrModelNotFound = errors.New("model not available")
	// ErrInsufficientHistory means the fetched series is shorter than WindowSize.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrDataUnavailable means the market-data source failed or returned nothing.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrUpstreamTimeout is a DataUnavailable raised by a stalled upstream.
	ErrUpstreamTimeout = &timeoutError{}
	// ErrArtifactLoad means an artifact exists but cannot be decoded or is incompatible.
	ErrArtifactLoad = errors.New("artifact load failed")
)

type timeoutError struct{}

func (*timeoutError) Error() string { return "market data request timed out" }

func (*timeoutError) Is(target error) bool { return target == ErrDataUnavailable }

// HistoryError is an ErrInsufficientHistory that records the bar counts.
type HistoryError struct {
	Got  int
	Need int
}

func (e *HistoryError) Error() string { return fmt.Sprintf("got %d bars, need %d", e.Got, e.Need) }

func (e *HistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// ErrorKind classifies pipeline failures for the transport edge.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientHistory ErrorKind = "insufficient_history"
	KindDataUnavailable     ErrorKind = "data_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindArtifactLoad        ErrorKind = "artifact_load"
	KindInternal            ErrorKind = "internal"
)

// KindOf returns the classification of err. Order matters: timeouts are also DataUnavailable.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrModelNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrDataUnavailable):
		return KindDataUnavailable
	case errors.Is(err, ErrArtifactLoad):
		return KindArtifactLoad
	default:
		return KindInternal
	}
}
