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

// Package connector lets a host runtime subscribe to GitHub repository
// webhook events.
//
// Subscriptions are registered with On before Start. Start makes sure each
// subscribed repository has a webhook pointing at the runtime, and the
// connector's Handler receives the resulting deliveries and calls the
// matching subscription handlers.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/github-connector/internal/github"
	"github.com/mikelane/github-connector/internal/reconcile"
	"github.com/mikelane/github-connector/internal/subscription"
	"github.com/mikelane/github-connector/internal/webhook"
)

var (
	// ErrStarted is returned when subscribing to or starting a connector that already started
	ErrStarted = errors.New("connector already started")
	// ErrStopped is returned when using a connector after Stop
	ErrStopped = errors.New("connector stopped")
)

// Options configures a Connector
type Options struct {
	// ID identifies the connector; a UUID is generated when empty
	ID string
	// Secret enables signature verification and is set on created webhooks
	Secret string
	// WebhookPath is where deliveries arrive; defaults to webhook.DefaultPath
	WebhookPath string
	// RuntimeBaseURL is the public https origin of the runtime. Required
	// once any subscription exists.
	RuntimeBaseURL string
	// Concurrency bounds parallel repository reconciliation
	Concurrency int
}

// Connector owns a set of subscriptions and the webhooks that feed them
type Connector struct {
	id         string
	opts       Options
	client     github.Client
	registry   *subscription.Registry
	router     *webhook.Router
	reconciler *reconcile.Reconciler

	mu       sync.RWMutex
	starting bool
	started  bool
	stopped  bool
	last     *reconcile.Webhook
	webhooks []reconcile.Webhook
}

// New creates a connector that manages webhooks through client
func New(client github.Client, opts Options) *Connector {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.WebhookPath == "" {
		opts.WebhookPath = webhook.DefaultPath
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = reconcile.DefaultConcurrency
	}

	registry := subscription.NewRegistry(opts.ID)
	return &Connector{
		id:         opts.ID,
		opts:       opts,
		client:     client,
		registry:   registry,
		router:     webhook.NewRouter(registry, opts.Secret),
		reconciler: reconcile.New(client, reconcile.WithConcurrency(opts.Concurrency)),
	}
}

// ID returns the connector id
func (c *Connector) ID() string { return c.id }

// Path returns the path deliveries are expected on
func (c *Connector) Path() string { return c.opts.WebhookPath }

// Client returns the GitHub client for direct API calls
func (c *Connector) Client() github.Client { return c.client }

// On registers handler for the events described by opts. An empty id is
// generated from the options and the connector id. Subscriptions must be
// registered before Start so their webhooks get reconciled.
//
// Every selector is also requested from GitHub when the webhook is created,
// and GitHub only accepts event names there. A subscription whose selectors
// include a payload action ("opened") makes Start fail with HTTP 422 for that
// repository, unless it already has a matching webhook subscribed to "*".
func (c *Connector) On(opts subscription.EventOptions, handler subscription.Handler, id string) (*subscription.Subscription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.stopped:
		return nil, ErrStopped
	case c.started, c.starting:
		return nil, ErrStarted
	}
	return c.registry.Register(opts, handler, id)
}

// Subscriptions returns the registered subscriptions in registration order
func (c *Connector) Subscriptions() []*subscription.Subscription {
	return c.registry.All()
}

// Start reconciles the webhooks of every subscribed repository. With no
// subscriptions it does nothing. Any reconciliation error is returned and
// leaves the connector unstarted. Deliveries are routed while reconciliation
// is in flight.
func (c *Connector) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithValues("connector", c.id)

	c.mu.Lock()
	switch {
	case c.stopped:
		c.mu.Unlock()
		return ErrStopped
	case c.started, c.starting:
		c.mu.Unlock()
		return ErrStarted
	}
	if c.registry.Len() == 0 {
		c.started = true
		c.mu.Unlock()
		logger.Info("No subscriptions registered, skipping webhook reconciliation")
		return nil
	}
	c.starting = true
	c.mu.Unlock()

	result, err := c.reconciler.Reconcile(log.IntoContext(ctx, logger), c.registry.Targets(), reconcile.Options{
		BaseURL:     c.opts.RuntimeBaseURL,
		WebhookPath: c.opts.WebhookPath,
		Secret:      c.opts.Secret,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if result != nil {
		c.webhooks = append([]reconcile.Webhook(nil), result.Webhooks...)
		if last := result.Last(); last != nil {
			c.last = last
		}
	}
	if err != nil {
		return fmt.Errorf("failed to reconcile webhooks: %w", err)
	}

	c.started = true
	logger.Info("Connector started", "subscriptions", c.registry.Len(), "webhooks", len(result.Webhooks))
	return nil
}

// Stop tears the connector down. Deliveries arriving afterwards are
// acknowledged without dispatch.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		c.stopped = true
		log.FromContext(ctx).Info("Connector stopped", "connector", c.id)
	}
	return nil
}

// Route handles one delivery; see webhook.Router.Route
func (c *Connector) Route(ctx context.Context, d *webhook.Delivery) bool {
	c.mu.RLock()
	stopped := c.stopped
	c.mu.RUnlock()

	if stopped {
		log.FromContext(ctx).V(1).Info("Ignoring delivery for stopped connector", "delivery", d.ID)
		return true
	}
	return c.router.Route(ctx, d)
}

// Handler returns the http.Handler hosts mount at Path
func (c *Connector) Handler() http.Handler {
	return webhook.NewHandler(c)
}

// Webhooks returns the outcome of every repository reconciled by the last
// Start, in subscription order
func (c *Connector) Webhooks() []reconcile.Webhook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]reconcile.Webhook(nil), c.webhooks...)
}

// LastWebhook returns the most recently reused or created webhook, if any
func (c *Connector) LastWebhook() *reconcile.Webhook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
