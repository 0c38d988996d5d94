// Package mock provides an in-memory implementation of
// [platform.Dispatcher] for use in unit tests.
//
// The mock records every call so tests can assert on call counts and
// arguments, and exposes exported fields the test can set to control return
// values. It is safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/voxdial/voxdial/pkg/platform"
)

// DispatchedCall records one PlaceCall invocation.
type DispatchedCall struct {
	RecordID string
	Address  string
}

// DispatchedLaunch records one LaunchApp invocation.
type DispatchedLaunch struct {
	RecordID string
	AppName  string
}

// Dispatcher is a mock implementation of [platform.Dispatcher].
// Set the exported Result/Error fields before use; inspect the recorded
// calls after.
type Dispatcher struct {
	mu sync.Mutex

	// PlaceCallResult is the handle returned by [Dispatcher.PlaceCall].
	PlaceCallResult platform.CallHandle

	// PlaceCallError is returned by [Dispatcher.PlaceCall].
	PlaceCallError error

	// LaunchAppError is returned by [Dispatcher.LaunchApp].
	LaunchAppError error

	// CancelCallError is returned by [Dispatcher.CancelCall].
	CancelCallError error

	// Calls records every PlaceCall invocation in order.
	Calls []DispatchedCall

	// Launches records every LaunchApp invocation in order.
	Launches []DispatchedLaunch

	// Cancelled records every handle passed to CancelCall.
	Cancelled []platform.CallHandle
}

var _ platform.Dispatcher = (*Dispatcher)(nil)

// PlaceCall implements [platform.Dispatcher].
func (d *Dispatcher) PlaceCall(_ context.Context, recordID, address string) (platform.CallHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, DispatchedCall{RecordID: recordID, Address: address})
	return d.PlaceCallResult, d.PlaceCallError
}

// LaunchApp implements [platform.Dispatcher].
func (d *Dispatcher) LaunchApp(_ context.Context, recordID, appName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Launches = append(d.Launches, DispatchedLaunch{RecordID: recordID, AppName: appName})
	return d.LaunchAppError
}

// CancelCall implements [platform.Dispatcher].
func (d *Dispatcher) CancelCall(_ context.Context, handle platform.CallHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Cancelled = append(d.Cancelled, handle)
	return d.CancelCallError
}
