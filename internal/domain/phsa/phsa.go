// Package phsa holds the envelope types shared by every PHSA-backed domain
// package.
package phsa

import (
	"context"

	"github.com/bcgov/healthgateway-sub024/internal/platform/downstream"
)

// ServiceName labels PHSA calls in errors, logs and metrics.
const ServiceName = "phsa"

// Caller executes one downstream operation. *downstream.Client satisfies it.
type Caller interface {
	Do(ctx context.Context, d downstream.Descriptor, p downstream.Params, out any) error
}

// LoadState reports whether PHSA is still assembling a patient's data.
type LoadState struct {
	RefreshInProgress   bool `json:"refreshInProgress"`
	Queued              bool `json:"queued"`
	BackOffMilliseconds int  `json:"backOffMilliseconds"`
}

// RetryIn returns how long a client should wait before asking again, or 0
// when the data is complete.
func (s LoadState) RetryIn() int {
	if !s.RefreshInProgress && !s.Queued {
		return 0
	}
	return s.BackOffMilliseconds
}

// Loaded reports whether the data set is complete.
func (s LoadState) Loaded() bool {
	return !s.RefreshInProgress && !s.Queued
}

// Result is the PHSA reply wrapper.
type Result[T any] struct {
	Result    T         `json:"result"`
	LoadState LoadState `json:"loadState"`
}

// RequestResult is the body of every successful gateway read.
type RequestResult[T any] struct {
	ResourcePayload  T   `json:"resourcePayload"`
	TotalResultCount int `json:"totalResultCount"`
	PageIndex        int `json:"pageIndex"`
	PageSize         int `json:"pageSize"`
}

// Single wraps one payload.
func Single[T any](payload T) RequestResult[T] {
	return RequestResult[T]{ResourcePayload: payload, TotalResultCount: 1}
}

// List wraps a page of payloads. pageSize 0 means the whole set.
func List[T any](items []T, pageSize int) RequestResult[[]T] {
	if items == nil {
		items = []T{}
	}
	if pageSize == 0 {
		pageSize = len(items)
	}
	return RequestResult[[]T]{ResourcePayload: items, TotalResultCount: len(items), PageSize: pageSize}
}
