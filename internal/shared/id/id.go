// Package id hands out the identifiers the runtime attaches to bundle
// contexts, listeners, event stream subscribers and HTTP requests.
//
// Identifiers are a type prefix followed by a ULID, so ids of one kind sort
// in creation order. Service ids are not generated here; the service registry
// keeps its own strictly increasing integers because ranking ties are broken
// on them.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ContextID identifies a bundle execution context
type ContextID string

// ListenerID identifies a registered service or bundle listener
type ListenerID string

// SubscriptionID identifies an event stream subscriber
type SubscriptionID string

// RequestID identifies one introspection request
type RequestID string

const (
	ContextPrefix      = "ctx"
	ListenerPrefix     = "lsn"
	SubscriptionPrefix = "sub"
	RequestPrefix      = "req"
)

// source is shared by every kind so ids stay ordered across goroutines.
var source = struct {
	sync.Mutex
	entropy io.Reader
}{entropy: ulid.Monotonic(rand.Reader, 0)}

func next(prefix string) string {
	source.Lock()
	u := ulid.MustNew(ulid.Timestamp(time.Now()), source.entropy)
	source.Unlock()
	return prefix + "_" + u.String()
}

// NewContextID returns a ctx_ id for a bundle execution context.
func NewContextID() ContextID { return ContextID(next(ContextPrefix)) }

// NewListenerID returns an lsn_ id for a service or bundle listener.
func NewListenerID() ListenerID { return ListenerID(next(ListenerPrefix)) }

// NewSubscriptionID returns a sub_ id for an event stream subscriber.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(next(SubscriptionPrefix)) }

// NewRequestID returns a req_ id for an HTTP request.
func NewRequestID() RequestID { return RequestID(next(RequestPrefix)) }

func (id ContextID) String() string      { return string(id) }
func (id RequestID) String() string      { return string(id) }
func (id ListenerID) String() string     { return string(id) }
func (id SubscriptionID) String() string { return string(id) }
