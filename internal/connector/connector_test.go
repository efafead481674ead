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

package connector

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mikelane/github-connector/internal/github"
	"github.com/mikelane/github-connector/internal/reconcile"
	"github.com/mikelane/github-connector/internal/subscription"
	"github.com/mikelane/github-connector/internal/webhook"
)

type fakeGitHub struct {
	mu        sync.Mutex
	hooks     map[string][]*github.Hook
	listErr   error
	lists     int
	creates   []*github.HookRequest
	listGate  chan struct{}
	listEnter chan struct{}
}

func (f *fakeGitHub) ListHooks(_ context.Context, owner, repo string) ([]*github.Hook, error) {
	if f.listEnter != nil {
		f.listEnter <- struct{}{}
	}
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.hooks[owner+"/"+repo], nil
}

func (f *fakeGitHub) CreateHook(_ context.Context, _, _ string, req *github.HookRequest) (*github.Hook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	return &github.Hook{
		ID:          int64(len(f.creates)),
		URL:         req.URL,
		ContentType: req.ContentType,
		InsecureSSL: req.InsecureSSL,
		Events:      req.Events,
		Active:      true,
	}, nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("Connector", func() {
	const (
		secret  = "s3cr3t"
		baseURL = "https://runtime.example"
	)

	var (
		ctx    context.Context
		client *fakeGitHub
		conn   *Connector
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeGitHub{hooks: map[string][]*github.Hook{}}
		conn = New(client, Options{
			ID:             "conn-1",
			Secret:         secret,
			RuntimeBaseURL: baseURL,
		})
	})

	It("defaults its id and webhook path", func() {
		c := New(client, Options{})
		Expect(c.ID()).NotTo(BeEmpty())
		Expect(c.Path()).To(Equal(webhook.DefaultPath))
		Expect(c.Client()).To(BeIdenticalTo(client))
	})

	Context("when started without subscriptions", func() {
		It("does not touch GitHub, even without a base URL", func() {
			c := New(client, Options{})
			Expect(c.Start(ctx)).To(Succeed())
			Expect(client.lists).To(BeZero())
			Expect(c.LastWebhook()).To(BeNil())
		})
	})

	Context("when a repository has no webhook", func() {
		var received []*subscription.Event

		BeforeEach(func() {
			received = nil
			_, err := conn.On(subscription.EventOptions{
				Owner:  "acme",
				Repo:   "widgets",
				Events: []string{"push", "release"},
			}, func(_ context.Context, event *subscription.Event) error {
				received = append(received, event)
				return nil
			}, "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates one webhook for the union of events", func() {
			Expect(conn.Start(ctx)).To(Succeed())

			Expect(client.creates).To(HaveLen(1))
			req := client.creates[0]
			Expect(req.Events).To(Equal([]string{"push", "release"}))
			Expect(req.URL).To(Equal("https://runtime.example/reshuffle-github-connector/webhook"))
			Expect(req.ContentType).To(Equal("json"))
			Expect(req.InsecureSSL).To(Equal("0"))
			Expect(req.Secret).To(Equal(secret))

			last := conn.LastWebhook()
			Expect(last).NotTo(BeNil())
			Expect(last.Action).To(Equal(reconcile.ActionCreated))
		})

		It("delivers a signed push to the handler with the merged payload", func() {
			Expect(conn.Start(ctx)).To(Succeed())

			body := []byte(`{"ref":"refs/heads/main","repo":"body-wins","repository":{"name":"widgets","owner":{"login":"acme"}}}`)
			req := httptest.NewRequest(http.MethodPost, conn.Path(), bytes.NewReader(body))
			req.Header.Set(webhook.EventHeader, "push")
			req.Header.Set(webhook.Signature256Header, sign(body, secret))
			w := httptest.NewRecorder()

			conn.Handler().ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.Len()).To(BeZero())
			Expect(received).To(HaveLen(1))
			Expect(received[0].Payload).To(HaveKeyWithValue("owner", "acme"))
			Expect(received[0].Payload).To(HaveKeyWithValue("repo", "body-wins"))
			Expect(received[0].Payload).To(HaveKeyWithValue("ref", "refs/heads/main"))
			Expect(received[0].Payload).To(HaveKey("events"))
		})

		It("rejects a delivery with a bad signature", func() {
			Expect(conn.Start(ctx)).To(Succeed())

			body := []byte(`{"repository":{"name":"widgets","owner":{"login":"acme"}}}`)
			handled := conn.Route(ctx, &webhook.Delivery{Event: "push", Signature256: sign(body, "wrong"), Body: body})

			Expect(handled).To(BeFalse())
			Expect(received).To(BeEmpty())
		})

		It("refuses new subscriptions after start", func() {
			Expect(conn.Start(ctx)).To(Succeed())

			_, err := conn.On(subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "issues"},
				func(context.Context, *subscription.Event) error { return nil }, "")
			Expect(err).To(MatchError(ErrStarted))
			Expect(conn.Start(ctx)).To(MatchError(ErrStarted))
		})

		It("acknowledges without dispatch once stopped", func() {
			Expect(conn.Start(ctx)).To(Succeed())
			Expect(conn.Stop(ctx)).To(Succeed())

			body := []byte(`{"repository":{"name":"widgets","owner":{"login":"acme"}}}`)
			Expect(conn.Route(ctx, &webhook.Delivery{Event: "push", Signature256: sign(body, secret), Body: body})).To(BeTrue())
			Expect(received).To(BeEmpty())
			Expect(conn.Start(ctx)).To(MatchError(ErrStopped))
		})
	})

	Context("while reconciliation is waiting on GitHub", func() {
		var (
			received []*subscription.Event
			started  chan error
		)

		BeforeEach(func() {
			received = nil
			client.listGate = make(chan struct{})
			client.listEnter = make(chan struct{}, 1)
			_, err := conn.On(subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"},
				func(_ context.Context, event *subscription.Event) error {
					received = append(received, event)
					return nil
				}, "")
			Expect(err).NotTo(HaveOccurred())

			started = make(chan error, 1)
			go func() { started <- conn.Start(ctx) }()
			Eventually(client.listEnter).Should(Receive())
		})

		AfterEach(func() {
			close(client.listGate)
			Eventually(started).Should(Receive(Succeed()))
		})

		It("keeps routing deliveries", func() {
			routed := make(chan bool, 2)
			go func() {
				routed <- conn.Route(ctx, &webhook.Delivery{Event: webhook.PingEvent, Body: []byte(`{"zen":"hi"}`)})
				body := []byte(`{"repository":{"name":"widgets","owner":{"login":"acme"}}}`)
				routed <- conn.Route(ctx, &webhook.Delivery{Event: "push", Signature256: sign(body, secret), Body: body})
			}()

			Eventually(routed).Should(Receive(BeTrue()))
			Eventually(routed).Should(Receive(BeTrue()))
			Expect(received).To(HaveLen(1))
		})

		It("answers state queries and refuses a second start", func() {
			Expect(conn.LastWebhook()).To(BeNil())
			Expect(conn.Start(ctx)).To(MatchError(ErrStarted))
			_, err := conn.On(subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "issues"},
				func(context.Context, *subscription.Event) error { return nil }, "")
			Expect(err).To(MatchError(ErrStarted))
		})
	})

	Context("when a matching webhook already exists", func() {
		BeforeEach(func() {
			client.hooks["acme/widgets"] = []*github.Hook{{
				ID:          42,
				URL:         "https://runtime.example/reshuffle-github-connector/webhook",
				ContentType: "json",
				InsecureSSL: "0",
				Events:      []string{"push", "release", "issues"},
			}}
			_, err := conn.On(subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"},
				func(context.Context, *subscription.Event) error { return nil }, "push-sub")
			Expect(err).NotTo(HaveOccurred())
		})

		It("reuses it", func() {
			Expect(conn.Start(ctx)).To(Succeed())
			Expect(client.creates).To(BeEmpty())
			Expect(conn.LastWebhook().Hook.ID).To(Equal(int64(42)))
			Expect(conn.LastWebhook().Action).To(Equal(reconcile.ActionReused))
		})
	})

	Context("with several repositories", func() {
		It("records every reconciled webhook in subscription order", func() {
			for _, repo := range []string{"widgets", "gadgets"} {
				_, err := conn.On(subscription.EventOptions{Owner: "acme", Repo: repo, Event: "push"},
					func(context.Context, *subscription.Event) error { return nil }, "")
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(conn.Start(ctx)).To(Succeed())

			webhooks := conn.Webhooks()
			Expect(webhooks).To(HaveLen(2))
			Expect(webhooks[0].Repo).To(Equal("widgets"))
			Expect(webhooks[1].Repo).To(Equal("gadgets"))
			Expect(conn.LastWebhook().Repo).To(Equal("gadgets"))
		})
	})

	Context("when configuration or GitHub fails", func() {
		BeforeEach(func() {
			_, err := conn.On(subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"},
				func(context.Context, *subscription.Event) error { return nil }, "")
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails before any API call on a malformed base URL", func() {
			c := New(client, Options{RuntimeBaseURL: "http://runtime.example"})
			_, err := c.On(subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"},
				func(context.Context, *subscription.Event) error { return nil }, "")
			Expect(err).NotTo(HaveOccurred())

			err = c.Start(ctx)
			Expect(errors.Is(err, reconcile.ErrInvalidBaseURL)).To(BeTrue())
			Expect(client.lists).To(BeZero())
		})

		It("surfaces provider errors", func() {
			client.listErr = errors.New("forbidden")
			err := conn.Start(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("acme/widgets"))
			Expect(client.creates).To(BeEmpty())
		})
	})
})
