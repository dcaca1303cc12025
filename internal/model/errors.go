package model

import "errors"

var (
	// ErrStorage means the persistence medium was unavailable or corrupt.
	ErrStorage = errors.New("storage error")
	// ErrEmbeddingUnavailable means the embedding provider failed or timed out.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrNotFound             = errors.New("not found")
	ErrInvalidType          = errors.New("invalid memory type")
)
