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

package reconcile

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/github-connector/internal/github"
	"github.com/mikelane/github-connector/internal/subscription"
)

// DefaultConcurrency is the number of repositories reconciled in parallel
const DefaultConcurrency = 4

// Action records what reconciliation did for a repository
type Action string

const (
	// ActionReused means an existing webhook already covered the request
	ActionReused Action = "reused"
	// ActionCreated means a new webhook was registered
	ActionCreated Action = "created"
)

// Webhook is the outcome for one repository
type Webhook struct {
	Owner  string
	Repo   string
	Action Action
	Hook   *github.Hook
}

// Result lists the outcome of every repository that reconciled successfully,
// in target order.
type Result struct {
	Webhooks []Webhook
}

// Last returns the final webhook of the result, or nil when there is none
func (r *Result) Last() *Webhook {
	if r == nil || len(r.Webhooks) == 0 {
		return nil
	}
	return &r.Webhooks[len(r.Webhooks)-1]
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithConcurrency bounds how many repositories are reconciled at once.
// Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// Reconciler ensures repository webhooks exist for a set of targets
type Reconciler struct {
	client      github.Client
	concurrency int
}

// New creates a Reconciler backed by client
func New(client github.Client, opts ...Option) *Reconciler {
	r := &Reconciler{
		client:      client,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile ensures each target has a webhook delivering its events to the
// callback URL. With no targets it does nothing. An invalid base URL fails
// before any API call. Per-target failures are aggregated and returned
// together with the result of the targets that succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, targets []subscription.Target, opts Options) (*Result, error) {
	if len(targets) == 0 {
		return &Result{}, nil
	}

	callbackURL, err := opts.CallbackURL()
	if err != nil {
		return nil, err
	}

	logger := log.FromContext(ctx)
	logger.Info("Reconciling webhooks", "repositories", len(targets), "url", callbackURL)

	outcomes := make([]*Webhook, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			webhook, err := r.reconcileTarget(ctx, target, callbackURL, opts.Secret)
			if err != nil {
				logger.Error(err, "Failed to reconcile webhook", "repository", target.FullName())
				errs[i] = fmt.Errorf("%s: %w", target.FullName(), err)
				return nil
			}
			outcomes[i] = webhook
			return nil
		})
	}
	// Goroutines report through errs so every target is attempted.
	g.Wait()

	result := &Result{}
	for _, webhook := range outcomes {
		if webhook != nil {
			result.Webhooks = append(result.Webhooks, *webhook)
		}
	}

	return result, utilerrors.NewAggregate(errs)
}

// reconcileTarget lists the repository's hooks once and creates at most one
func (r *Reconciler) reconcileTarget(ctx context.Context, target subscription.Target, callbackURL, secret string) (*Webhook, error) {
	logger := log.FromContext(ctx).WithValues("repository", target.FullName())

	hooks, err := r.client.ListHooks(ctx, target.Owner, target.Repo)
	if err != nil {
		return nil, err
	}

	for _, hook := range hooks {
		if hookMatches(hook, callbackURL, target.Events) {
			logger.Info("Reusing existing webhook", "id", hook.ID, "events", hook.Events)
			return &Webhook{Owner: target.Owner, Repo: target.Repo, Action: ActionReused, Hook: hook}, nil
		}
	}

	created, err := r.client.CreateHook(ctx, target.Owner, target.Repo, &github.HookRequest{
		URL:         callbackURL,
		ContentType: github.ContentTypeJSON,
		InsecureSSL: github.InsecureSSLDisabled,
		Secret:      secret,
		Events:      append([]string(nil), target.Events...),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Created webhook", "id", created.ID, "events", target.Events)
	return &Webhook{Owner: target.Owner, Repo: target.Repo, Action: ActionCreated, Hook: created}, nil
}

// hookMatches reports whether hook delivers json to url with TLS
// verification on and subscribes to every requested event. A remote "*"
// covers any request.
func hookMatches(hook *github.Hook, url string, events []string) bool {
	if hook == nil {
		return false
	}
	if hook.URL != url || hook.ContentType != github.ContentTypeJSON || hook.InsecureSSL != github.InsecureSSLDisabled {
		return false
	}

	remote := sets.New(hook.Events...)
	if remote.Has(subscription.Wildcard) {
		return true
	}
	return remote.HasAll(events...)
}
