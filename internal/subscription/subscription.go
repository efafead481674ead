/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Wildcard matches every event.
const Wildcard = "*"

var (
	// ErrInvalidOptions is returned when owner, repo or selectors are missing
	ErrInvalidOptions = errors.New("invalid subscription options")
	// ErrNilHandler is returned when a subscription is registered without a handler
	ErrNilHandler = errors.New("subscription handler is nil")
	// ErrDuplicateID is returned when a subscription id is already registered
	ErrDuplicateID = errors.New("subscription id already registered")
)

// Handler receives the events a subscription matched.
type Handler func(ctx context.Context, event *Event) error

// EventOptions describes what a caller wants to be notified about.
// Event and Events may both be set; the selectors are their union.
type EventOptions struct {
	Owner  string   `json:"owner" yaml:"owner"`
	Repo   string   `json:"repo" yaml:"repo"`
	Event  string   `json:"event,omitempty" yaml:"event,omitempty"`
	Events []string `json:"events,omitempty" yaml:"events,omitempty"`
}

// Selectors returns the de-duplicated event selectors in declaration order.
func (o EventOptions) Selectors() []string {
	seen := sets.New[string]()
	var out []string
	for _, s := range append([]string{o.Event}, o.Events...) {
		s = strings.TrimSpace(s)
		if s == "" || seen.Has(s) {
			continue
		}
		seen.Insert(s)
		out = append(out, s)
	}
	return out
}

// Validate reports whether the options can form a subscription.
func (o EventOptions) Validate() error {
	switch {
	case strings.TrimSpace(o.Owner) == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidOptions)
	case strings.TrimSpace(o.Repo) == "":
		return fmt.Errorf("%w: repo is required", ErrInvalidOptions)
	case len(o.Selectors()) == 0:
		return fmt.Errorf("%w: at least one event is required", ErrInvalidOptions)
	}
	return nil
}

// Subscription is a registered interest in events from one repository.
type Subscription struct {
	id        string
	owner     string
	repo      string
	events    []string
	selectors sets.Set[string]
	handler   Handler
}

func newSubscription(id string, opts EventOptions, handler Handler) *Subscription {
	events := opts.Selectors()
	return &Subscription{
		id:        id,
		owner:     strings.TrimSpace(opts.Owner),
		repo:      strings.TrimSpace(opts.Repo),
		events:    events,
		selectors: sets.New(events...),
		handler:   handler,
	}
}

// ID returns the subscription id
func (s *Subscription) ID() string { return s.id }

// Owner returns the repository owner
func (s *Subscription) Owner() string { return s.owner }

// Repo returns the repository name
func (s *Subscription) Repo() string { return s.repo }

// Events returns a copy of the event selectors in declaration order
func (s *Subscription) Events() []string {
	return append([]string(nil), s.events...)
}

// Wildcard reports whether the subscription receives every event
func (s *Subscription) Wildcard() bool {
	return s.selectors.Has(Wildcard)
}

// Matches reports whether a delivery for owner/repo carrying any of the
// given event names belongs to this subscription.
func (s *Subscription) Matches(owner, repo string, names ...string) bool {
	if s.owner != owner || s.repo != repo {
		return false
	}
	if s.Wildcard() {
		return true
	}
	for _, name := range names {
		if name != "" && s.selectors.Has(name) {
			return true
		}
	}
	return false
}

// Handle invokes the subscription's handler.
func (s *Subscription) Handle(ctx context.Context, event *Event) error {
	return s.handler(ctx, event)
}

// metadata is the subscription's contribution to an event payload
func (s *Subscription) metadata() map[string]any {
	return map[string]any{
		"id":     s.id,
		"owner":  s.owner,
		"repo":   s.repo,
		"events": s.Events(),
	}
}
