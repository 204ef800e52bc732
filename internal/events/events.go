// Package events carries structured facts about what the harness did to
// an attributed sink: one HTTP request, one resource operation, one
// cleanup sweep. The core only fires events; what happens with them is
// the sink's business.
package events

import (
	"context"
	"net/http"
	"time"
)

// Event is a single structured fact. Request events carry Method, URL
// and Status; operation events carry Name, Took and Err.
type Event struct {
	Name   string
	Time   time.Time
	Took   time.Duration
	Worker string

	Method string
	URL    string
	Status int

	Err    error
	Fields map[string]any
}

// Sink consumes events. Implementations must be safe for concurrent
// use; the client fires events from multiple creation flows at once.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

func (s Sinks) Record(ctx context.Context, e Event) {
	for _, sink := range s {
		sink.Record(ctx, e)
	}
}

// Discard is a sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) {}

// Request builds the event fired after every HTTP response, before the
// response status is validated.
func Request(req *http.Request, resp *http.Response, took time.Duration) Event {
	e := Event{
		Name:   "request.after",
		Time:   time.Now(),
		Took:   took,
		Method: req.Method,
		URL:    req.URL.String(),
	}
	if resp != nil {
		e.Status = resp.StatusCode
	}
	return e
}

// Operation builds an event for a named resource operation, such as
// "server.create" or "cleanup.sweep".
func Operation(name string, took time.Duration, err error, fields map[string]any) Event {
	return Event{
		Name:   name,
		Time:   time.Now(),
		Took:   took,
		Err:    err,
		Fields: fields,
	}
}
