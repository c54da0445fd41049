// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of steps and nodes while a flow runs.
//
// The store isolates execution state (status, outputs, errors) from the
// immutable plan held in physical.StepGraph. The executor and the local
// substrate write to it; callers of a flow query it for per-unit outcomes.
//
// Units follow this lifecycle:
//
//	Pending → Running → Completed (with output) OR Failed (with error)
//	Pending → Skipped (upstream failure or cancellation)
package nodestore

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/nodeid"
)

// Store manages the execution state of steps and nodes, keyed by address.
//
// Implementations MUST be safe for concurrent use: nodes of a wave run in
// parallel and report their state simultaneously.
type Store interface {
	// SetStatus updates the execution status of a unit.
	SetStatus(ctx context.Context, id nodeid.Address, status node.Status) error

	// GetStatus returns the status of a unit, StatusPending if none was set.
	GetStatus(ctx context.Context, id nodeid.Address) (node.Status, error)

	// SetOutput records what a completed unit produced, such as its record count.
	SetOutput(ctx context.Context, id nodeid.Address, output any) error

	// GetOutput returns the recorded output, nil when none was recorded.
	GetOutput(ctx context.Context, id nodeid.Address) (any, error)

	// SetError records why a unit failed or was skipped.
	SetError(ctx context.Context, id nodeid.Address, nodeErr error) error

	// GetError returns the recorded failure, nil when the unit did not fail.
	GetError(ctx context.Context, id nodeid.Address) (error, error)

	// Statuses returns every recorded status keyed by address string.
	Statuses(ctx context.Context) (map[string]node.Status, error)
}
