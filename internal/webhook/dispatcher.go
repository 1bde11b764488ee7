package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hubgate/hubgate/internal/observability/logger"
)

// ActionWildcard registers a handler for every action of an event.
// Wildcard handlers run before action-specific ones.
const ActionWildcard = "*"

// Handler processes one delivery. An error marks the handler's result as
// failed without affecting sibling handlers.
type Handler func(ctx context.Context, payload json.RawMessage, wc *Context) error

// Middleware runs before any handler. Returning false vetoes the whole
// dispatch: no handler runs and a single blocked result is produced.
type Middleware func(ctx context.Context, payload json.RawMessage, wc *Context) bool

// Result is the outcome of one handler invocation.
type Result struct {
	Handler string `json:"handler"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type handlerKey struct {
	event  string
	action string
}

type registration struct {
	name string
	fn   Handler
}

// Dispatcher routes deliveries through the middleware chain into registered
// handlers. Registration order is execution order; handlers run one at a
// time so side effects stay deterministically ordered.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   map[handlerKey][]registration
	middleware []Middleware
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[handlerKey][]registration)}
}

// Use appends a middleware. Middleware run in registration order.
func (d *Dispatcher) Use(mw Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middleware = append(d.middleware, mw)
}

// On registers a named handler for (event, action). Pass ActionWildcard to
// receive every action of the event.
func (d *Dispatcher) On(event, action, name string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := handlerKey{event: event, action: action}
	d.handlers[k] = append(d.handlers[k], registration{name: name, fn: fn})
}

// Process runs middleware and handlers for one delivery and returns the
// ordered per-handler results. It never returns an error: handler failures
// are isolated into their results and the caller derives the overall
// success flag.
func (d *Dispatcher) Process(ctx context.Context, payload json.RawMessage, wc *Context) []Result {
	d.mu.RLock()
	middleware := d.middleware
	wildcard := d.handlers[handlerKey{event: wc.Event, action: ActionWildcard}]
	var specific []registration
	if wc.Action != "" && wc.Action != ActionWildcard {
		specific = d.handlers[handlerKey{event: wc.Event, action: wc.Action}]
	}
	d.mu.RUnlock()

	for _, mw := range middleware {
		if !mw(ctx, payload, wc) {
			logger.From(ctx).Warn("webhook dispatch blocked by middleware",
				logger.Event(wc.Event), logger.Delivery(wc.Delivery))
			return []Result{{Handler: "middleware", Success: false, Error: "blocked by middleware"}}
		}
	}

	results := make([]Result, 0, len(wildcard)+len(specific))
	for _, reg := range wildcard {
		results = append(results, d.invoke(ctx, reg, payload, wc))
	}
	for _, reg := range specific {
		results = append(results, d.invoke(ctx, reg, payload, wc))
	}
	return results
}

// invoke runs one handler with panic and error isolation.
func (d *Dispatcher) invoke(ctx context.Context, reg registration, payload json.RawMessage, wc *Context) (res Result) {
	res = Result{Handler: reg.name, Success: true}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
			logger.From(ctx).Error("webhook handler panicked",
				logger.Event(wc.Event), logger.Delivery(wc.Delivery),
				logger.Action(wc.Action))
		}
	}()
	if err := reg.fn(ctx, payload, wc); err != nil {
		res.Success = false
		res.Error = err.Error()
	}
	return res
}
