// Package mediator dispatches typed requests to single-purpose handlers.
//
// Each request type (a query or a command) has exactly one handler. Handlers
// are registered with Register and invoked with Send; pipeline behaviors wrap
// every dispatch in registration order, outermost first.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrHandlerNotFound is returned by Send for an unregistered request type.
	ErrHandlerNotFound = errors.New("no handler registered for request")
	// ErrDuplicateHandler is returned when a request type is registered twice.
	ErrDuplicateHandler = errors.New("handler already registered for request")
	// ErrResponseType is returned when Send asks for a different response type
	// than the handler was registered with.
	ErrResponseType = errors.New("handler response type mismatch")
)

// Handler handles one request type.
type Handler[Q, R any] interface {
	Handle(ctx context.Context, request Q) (R, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc[Q, R any] func(ctx context.Context, request Q) (R, error)

// Handle calls f(ctx, request).
func (f HandlerFunc[Q, R]) Handle(ctx context.Context, request Q) (R, error) {
	return f(ctx, request)
}

// Next invokes the rest of the pipeline.
type Next func(ctx context.Context, request any) (any, error)

// Behavior runs around every handler. name is the request's type name,
// e.g. "activities.ListQuery".
type Behavior func(ctx context.Context, name string, request any, next Next) (any, error)

type entry struct {
	name         string
	responseType reflect.Type
	handle       Next
}

// Mediator routes requests to handlers.
type Mediator struct {
	mu        sync.RWMutex
	handlers  map[reflect.Type]entry
	behaviors []Behavior
}

// New creates a Mediator with the given pipeline behaviors.
func New(behaviors ...Behavior) *Mediator {
	return &Mediator{
		handlers:  make(map[reflect.Type]entry),
		behaviors: behaviors,
	}
}

// Register binds h to request type Q.
func Register[Q, R any](m *Mediator, h Handler[Q, R]) error {
	requestType := reflect.TypeFor[Q]()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.handlers[requestType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, requestType)
	}

	m.handlers[requestType] = entry{
		name:         requestType.String(),
		responseType: reflect.TypeFor[R](),
		handle: func(ctx context.Context, request any) (any, error) {
			return h.Handle(ctx, request.(Q))
		},
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for wiring at startup.
func MustRegister[Q, R any](m *Mediator, h Handler[Q, R]) {
	if err := Register(m, h); err != nil {
		panic(err)
	}
}

// Send dispatches request to its handler through the pipeline.
func Send[Q, R any](ctx context.Context, m *Mediator, request Q) (R, error) {
	var zero R
	requestType := reflect.TypeFor[Q]()

	m.mu.RLock()
	e, ok := m.handlers[requestType]
	m.mu.RUnlock()

	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrHandlerNotFound, requestType)
	}
	if e.responseType != reflect.TypeFor[R]() {
		return zero, fmt.Errorf("%w: %s returns %s, not %s", ErrResponseType, e.name, e.responseType, reflect.TypeFor[R]())
	}

	next := e.handle
	for i := len(m.behaviors) - 1; i >= 0; i-- {
		behavior, inner := m.behaviors[i], next
		next = func(ctx context.Context, request any) (any, error) {
			return behavior(ctx, e.name, request, inner)
		}
	}

	result, err := next(ctx, request)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	return result.(R), nil
}

// Registered reports whether a handler exists for request type Q.
func Registered[Q any](m *Mediator) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.handlers[reflect.TypeFor[Q]()]
	return ok
}
