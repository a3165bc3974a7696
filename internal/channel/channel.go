// Package channel defines the adapter contract every delivery transport
// implements and the registry the orchestrator dispatches through.
package channel

import (
	"context"
	"sort"

	"github.com/Hibaxbelghith/argus-sub000/internal/alert"
	"github.com/Hibaxbelghith/argus-sub000/internal/delivery"
)

// Result is the provider metadata of a successful delivery.
type Result struct {
	ProviderRef string
}

// Adapter delivers one record on one transport. Adapters format content for
// their medium and call their provider; they never touch records other than
// the one they are given, and they do not change its status.
type Adapter interface {
	Channel() delivery.Channel
	Deliver(ctx context.Context, rec *delivery.Record, event *alert.Event, recipient *delivery.Recipient) (Result, error)
}

// Registry maps channels to adapters.
type Registry struct {
	adapters map[delivery.Channel]Adapter
}

// NewRegistry creates a registry holding adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[delivery.Channel]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its channel.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Channel()] = a
}

// Get retrieves the adapter of ch.
func (r *Registry) Get(ch delivery.Channel) (Adapter, bool) {
	a, ok := r.adapters[ch]
	return a, ok
}

// List returns the registered channels in sorted order.
func (r *Registry) List() []delivery.Channel {
	channels := make([]delivery.Channel, 0, len(r.adapters))
	for ch := range r.adapters {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}
