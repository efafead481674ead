// Copyright 2025 The Previewd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/github-connector/internal/subscription"
)

// Routable accepts deliveries. It reports false only when a delivery was
// rejected for its signature.
type Routable interface {
	Route(ctx context.Context, d *Delivery) bool
}

// Router verifies deliveries and dispatches them to matching subscriptions
type Router struct {
	registry *subscription.Registry
	secret   string
}

// NewRouter creates a router over registry. An empty secret disables
// signature verification.
func NewRouter(registry *subscription.Registry, secret string) *Router {
	return &Router{
		registry: registry,
		secret:   secret,
	}
}

// Route handles one delivery. It returns false when a secret is configured
// and the signature does not verify; nothing is dispatched in that case.
// Every other delivery returns true, whatever its handlers did.
func (r *Router) Route(ctx context.Context, d *Delivery) bool {
	logger := log.FromContext(ctx).WithValues("delivery", d.ID, "event", d.Event)

	var payload deliveryPayload
	var body map[string]any
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		logger.Info("Ignoring delivery with unparseable payload", "error", err.Error())
		return true
	}
	if err := json.Unmarshal(d.Body, &body); err != nil {
		logger.Info("Ignoring delivery with non-object payload", "error", err.Error())
		return true
	}

	if payload.Action == "" && (d.Event == "" || d.Event == PingEvent) {
		logger.V(1).Info("Ignoring delivery without an actionable event")
		return true
	}

	if r.secret != "" {
		if err := VerifySignature(d, r.secret); err != nil {
			logger.Info("Rejecting delivery", "reason", err.Error())
			return false
		}
	}

	owner := payload.Repository.Owner.Login
	repo := payload.Repository.Name
	matched := r.registry.Match(owner, repo, d.Event, payload.Action)
	if len(matched) == 0 {
		logger.V(1).Info("No subscription matches delivery", "owner", owner, "repo", repo, "action", payload.Action)
		return true
	}

	for i, sub := range matched {
		// Each handler gets its own decoded body so nested values are not shared.
		if i > 0 {
			body = nil
			_ = json.Unmarshal(d.Body, &body)
		}
		event := subscription.NewEvent(sub, d.Event, payload.Action, d.ID, d.Body, body)
		if err := dispatch(ctx, sub, event); err != nil {
			logger.Error(err, "Subscription handler failed", "subscription", sub.ID())
			continue
		}
		logger.V(1).Info("Dispatched delivery", "subscription", sub.ID())
	}

	return true
}

// dispatch runs one handler, turning a panic into an error
func dispatch(ctx context.Context, sub *subscription.Subscription, event *subscription.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return sub.Handle(ctx, event)
}
