package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/cyclic-tasks/internal/model"
)

// ErrUnsupportedEndpoint is returned for endpoints no channel can serve.
var ErrUnsupportedEndpoint = errors.New("unsupported reminder endpoint")

// Deliverer sends one reminder to an endpoint. A nil error means the
// endpoint accepted the reminder.
type Deliverer interface {
	Deliver(ctx context.Context, endpoint, title, body string) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, endpoint, title, body string) error

// Deliver calls f.
func (f DelivererFunc) Deliver(ctx context.Context, endpoint, title, body string) error {
	return f(ctx, endpoint, title, body)
}

// Router dispatches reminders to a Deliverer chosen by endpoint scheme.
type Router struct {
	routes map[string]Deliverer
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Deliverer)}
}

// Handle registers d for the given URL scheme (e.g. "https", "mailto").
func (r *Router) Handle(scheme string, d Deliverer) *Router {
	r.routes[strings.ToLower(scheme)] = d
	return r
}

// Deliver implements Deliverer.
func (r *Router) Deliver(ctx context.Context, endpoint, title, body string) error {
	scheme := schemeOf(endpoint)
	d, ok := r.routes[scheme]
	if !ok {
		return fmt.Errorf("%w: scheme %q", ErrUnsupportedEndpoint, scheme)
	}
	return d.Deliver(ctx, endpoint, title, body)
}

// ChannelOf classifies an endpoint for audit records.
func ChannelOf(endpoint string) model.Channel {
	if schemeOf(endpoint) == "mailto" {
		return model.ChannelMailbox
	}
	return model.ChannelWebhook
}

func schemeOf(endpoint string) string {
	scheme, _, ok := strings.Cut(endpoint, ":")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(scheme))
}
