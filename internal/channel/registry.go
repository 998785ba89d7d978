package channel

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps channel names to the renderer and sender registered for
// them. Adapters register at startup; the pipeline resolves by the channel
// carried on each inbound message.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	senders   map[string]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		renderers: map[string]Renderer{},
		senders:   map[string]Sender{},
	}
}

// RegisterRenderer adds the wire renderer for a channel.
func (r *Registry) RegisterRenderer(channel string, renderer Renderer) error {
	name := normalizeName(channel)
	if name == "" {
		return fmt.Errorf("channel name is required")
	}
	if renderer == nil {
		return fmt.Errorf("renderer is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[name]; exists {
		return fmt.Errorf("renderer already registered: %s", name)
	}
	r.renderers[name] = renderer
	return nil
}

// RegisterSender adds the outbound sender for a channel. Channels whose
// replies return synchronously (the web API) register no sender.
func (r *Registry) RegisterSender(channel string, sender Sender) error {
	name := normalizeName(channel)
	if name == "" {
		return fmt.Errorf("channel name is required")
	}
	if sender == nil {
		return fmt.Errorf("sender is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.senders[name]; exists {
		return fmt.Errorf("sender already registered: %s", name)
	}
	r.senders[name] = sender
	return nil
}

// RendererFor returns the renderer registered for a channel.
func (r *Registry) RendererFor(channel string) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[normalizeName(channel)]
	return renderer, ok
}

// SenderFor returns the sender registered for a channel.
func (r *Registry) SenderFor(channel string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.senders[normalizeName(channel)]
	return sender, ok
}

// Channels returns every channel with a registration, sorted.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{}, len(r.renderers))
	for name := range r.renderers {
		set[name] = struct{}{}
	}
	for name := range r.senders {
		set[name] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
