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
	"fmt"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Target is one repository the connector needs a webhook on, with the union
// of event selectors requested for it.
type Target struct {
	Owner  string
	Repo   string
	Events []string
}

// FullName returns owner/repo
func (t Target) FullName() string {
	return t.Owner + "/" + t.Repo
}

// Registry stores subscriptions in registration order.
type Registry struct {
	mu          sync.RWMutex
	connectorID string
	order       []string
	byID        map[string]*Subscription
}

// NewRegistry creates an empty registry. connectorID is folded into
// generated subscription ids.
func NewRegistry(connectorID string) *Registry {
	return &Registry{
		connectorID: connectorID,
		byID:        make(map[string]*Subscription),
	}
}

// Register validates opts and stores a new subscription. An empty id is
// replaced by github/<owner>/<repo>/<selectors>/<connector id>.
func (r *Registry) Register(opts EventOptions, handler Handler, id string) (*Subscription, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	sub := newSubscription(id, opts, handler)
	if sub.id == "" {
		sub.id = fmt.Sprintf("github/%s/%s/%s/%s", sub.owner, sub.repo, strings.Join(sub.events, ","), r.connectorID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[sub.id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, sub.id)
	}
	r.byID[sub.id] = sub
	r.order = append(r.order, sub.id)
	return sub, nil
}

// Get returns the subscription registered under id
func (r *Registry) Get(id string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byID[id]
	return sub, ok
}

// Len returns the number of registered subscriptions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All returns every subscription in registration order
func (r *Registry) All() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]*Subscription, 0, len(r.order))
	for _, id := range r.order {
		subs = append(subs, r.byID[id])
	}
	return subs
}

// Match returns the subscriptions for owner/repo that accept any of the
// event names, in registration order.
func (r *Registry) Match(owner, repo string, names ...string) []*Subscription {
	var matched []*Subscription
	for _, sub := range r.All() {
		if sub.Matches(owner, repo, names...) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// Targets groups subscriptions by repository. Targets appear in the order
// their repository was first subscribed to; events keep first-seen order.
func (r *Registry) Targets() []Target {
	var targets []Target
	index := make(map[string]int)
	seen := make(map[string]sets.Set[string])

	for _, sub := range r.All() {
		key := sub.owner + "/" + sub.repo
		i, ok := index[key]
		if !ok {
			i = len(targets)
			index[key] = i
			seen[key] = sets.New[string]()
			targets = append(targets, Target{Owner: sub.owner, Repo: sub.repo})
		}
		for _, event := range sub.events {
			if seen[key].Has(event) {
				continue
			}
			seen[key].Insert(event)
			targets[i].Events = append(targets[i].Events, event)
		}
	}
	return targets
}
