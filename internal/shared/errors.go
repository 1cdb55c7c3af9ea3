// Package shared contains canonical type definitions shared across discovery.
package shared

import "errors"

// Semantic errors for embedding and vector-index operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("discovery: record not found")

	// ErrEmptyInput indicates blank or whitespace-only text was supplied.
	ErrEmptyInput = errors.New("discovery: empty input text")

	// ErrProviderUnavailable indicates the backing model or service could not
	// produce a result.
	ErrProviderUnavailable = errors.New("discovery: embedding provider unavailable")

	// ErrDimensionMismatch indicates the vector length does not match the
	// configured dimension.
	ErrDimensionMismatch = errors.New("discovery: vector dimension mismatch")

	// ErrInvalidVector indicates the vector is empty or contains non-finite values.
	ErrInvalidVector = errors.New("discovery: invalid vector")

	// ErrModelNotFound indicates the configured model identifier does not exist.
	// Permanent; callers must not retry.
	ErrModelNotFound = errors.New("discovery: model not found")

	// ErrUnauthorized indicates the provider rejected the configured credentials.
	// Permanent; callers must not retry.
	ErrUnauthorized = errors.New("discovery: unauthorized")

	// ErrModelWarming indicates the model is cold-starting.
	// Transient; retried with bounded backoff before surfacing.
	ErrModelWarming = errors.New("discovery: model warming up")

	// ErrNoPoints indicates an upsert was attempted with an empty point set.
	ErrNoPoints = errors.New("discovery: no points to upsert")

	// ErrBackend indicates a vector-index transport or auth failure.
	ErrBackend = errors.New("discovery: vector backend error")

	// ErrCollectionNotManaged indicates the backend provisions its index
	// out-of-band and the collection cannot be created through the API.
	ErrCollectionNotManaged = errors.New("discovery: collection provisioned out-of-band")
)
