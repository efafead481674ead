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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"

	"github.com/mikelane/github-connector/internal/subscription"
)

const testSecret = "test-webhook-secret"

func computeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// recorder collects handler invocations in order
type recorder struct {
	calls  []string
	events []*subscription.Event
}

func (rec *recorder) handler(id string, err error) subscription.Handler {
	return func(_ context.Context, event *subscription.Event) error {
		rec.calls = append(rec.calls, id)
		rec.events = append(rec.events, event)
		return err
	}
}

func signedDelivery(event string, body string) *Delivery {
	return &Delivery{
		Event:        event,
		ID:           "delivery-1",
		Signature256: computeSignature([]byte(body), testSecret),
		Body:         []byte(body),
	}
}

const pushBody = `{"ref":"refs/heads/main","id":"from-body","repository":{"name":"widgets","full_name":"acme/widgets","owner":{"login":"acme"}}}`

func setupRouter(t *testing.T, secret string) (*Router, *subscription.Registry, *recorder) {
	t.Helper()
	reg := subscription.NewRegistry("test")
	return NewRouter(reg, secret), reg, &recorder{}
}

func mustRegister(t *testing.T, reg *subscription.Registry, id string, opts subscription.EventOptions, h subscription.Handler) {
	t.Helper()
	if _, err := reg.Register(opts, h, id); err != nil {
		t.Fatalf("Register(%s) failed: %v", id, err)
	}
}

func TestRoute_DispatchesToMatchingSubscriptions(t *testing.T) {
	router, reg, rec := setupRouter(t, testSecret)
	mustRegister(t, reg, "push", subscription.EventOptions{Owner: "acme", Repo: "widgets", Events: []string{"push", "release"}}, rec.handler("push", nil))
	mustRegister(t, reg, "issues", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "issues"}, rec.handler("issues", nil))
	mustRegister(t, reg, "wildcard", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "*"}, rec.handler("wildcard", nil))
	mustRegister(t, reg, "other-repo", subscription.EventOptions{Owner: "acme", Repo: "gadgets", Event: "push"}, rec.handler("other-repo", nil))

	if !router.Route(context.Background(), signedDelivery("push", pushBody)) {
		t.Fatal("Route() returned false for a validly signed delivery")
	}

	if !reflect.DeepEqual(rec.calls, []string{"push", "wildcard"}) {
		t.Errorf("handlers called = %v, expected [push wildcard]", rec.calls)
	}
}

func TestRoute_MergedPayload(t *testing.T) {
	router, reg, rec := setupRouter(t, testSecret)
	mustRegister(t, reg, "sub-1", subscription.EventOptions{Owner: "acme", Repo: "widgets", Events: []string{"push", "release"}}, rec.handler("sub-1", nil))

	router.Route(context.Background(), signedDelivery("push", pushBody))

	if len(rec.events) != 1 {
		t.Fatalf("handler invoked %d times, expected 1", len(rec.events))
	}
	event := rec.events[0]
	if event.Payload["id"] != "from-body" {
		t.Errorf("payload id = %v, expected body value to win", event.Payload["id"])
	}
	if event.Payload["owner"] != "acme" || event.Payload["repo"] != "widgets" {
		t.Errorf("payload owner/repo = %v/%v, expected acme/widgets", event.Payload["owner"], event.Payload["repo"])
	}
	if event.Payload["ref"] != "refs/heads/main" {
		t.Errorf("payload ref = %v, expected refs/heads/main", event.Payload["ref"])
	}
	if !reflect.DeepEqual(event.Payload["events"], []string{"push", "release"}) {
		t.Errorf("payload events = %v, expected [push release]", event.Payload["events"])
	}
	if event.Name != "push" || event.DeliveryID != "delivery-1" || event.Subscription.ID() != "sub-1" {
		t.Errorf("event = %+v, expected push delivery-1 for sub-1", event)
	}
}

func TestRoute_MatchesAction(t *testing.T) {
	router, reg, rec := setupRouter(t, "")
	mustRegister(t, reg, "opened", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "opened"}, rec.handler("opened", nil))
	mustRegister(t, reg, "closed", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "closed"}, rec.handler("closed", nil))
	mustRegister(t, reg, "pull_request", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "pull_request"}, rec.handler("pull_request", nil))

	body := `{"action":"opened","number":1,"repository":{"name":"widgets","owner":{"login":"acme"}}}`
	router.Route(context.Background(), &Delivery{Event: "pull_request", Body: []byte(body)})

	if !reflect.DeepEqual(rec.calls, []string{"opened", "pull_request"}) {
		t.Errorf("handlers called = %v, expected [opened pull_request]", rec.calls)
	}
	if rec.events[0].Action != "opened" {
		t.Errorf("event action = %q, expected opened", rec.events[0].Action)
	}
}

func TestRoute_InvalidSignature(t *testing.T) {
	tests := []struct {
		name     string
		delivery *Delivery
	}{
		{"wrong signature", &Delivery{Event: "push", Signature256: "sha256=invalid", Body: []byte(pushBody)}},
		{"missing signature", &Delivery{Event: "push", Body: []byte(pushBody)}},
		{"signed with other secret", &Delivery{Event: "push", Signature256: computeSignature([]byte(pushBody), "other"), Body: []byte(pushBody)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, reg, rec := setupRouter(t, testSecret)
			mustRegister(t, reg, "all", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "*"}, rec.handler("all", nil))

			if router.Route(context.Background(), tt.delivery) {
				t.Error("Route() returned true for an invalid signature")
			}
			if len(rec.calls) != 0 {
				t.Errorf("handlers called = %v, expected none", rec.calls)
			}
		})
	}
}

func TestRoute_NoSecretSkipsVerification(t *testing.T) {
	router, reg, rec := setupRouter(t, "")
	mustRegister(t, reg, "push", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"}, rec.handler("push", nil))

	d := &Delivery{Event: "push", Signature256: "sha256=garbage", Body: []byte(pushBody)}
	if !router.Route(context.Background(), d) {
		t.Error("Route() returned false without a configured secret")
	}
	if len(rec.calls) != 1 {
		t.Errorf("handler invoked %d times, expected 1", len(rec.calls))
	}
}

func TestRoute_NoActionableEvent(t *testing.T) {
	tests := []struct {
		name     string
		delivery *Delivery
	}{
		{"ping", &Delivery{Event: "ping", Body: []byte(`{"zen":"Keep it logically awesome.","hook_id":1,"repository":{"name":"widgets","owner":{"login":"acme"}}}`)}},
		{"no event and no action", &Delivery{Body: []byte(pushBody)}},
		{"unparseable body", &Delivery{Event: "push", Body: []byte(`{invalid json}`)}},
		{"non-object body", &Delivery{Event: "push", Body: []byte(`[1,2,3]`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, reg, rec := setupRouter(t, testSecret)
			mustRegister(t, reg, "all", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "*"}, rec.handler("all", nil))

			// Unsigned: a signature check would fail, so true proves it was skipped
			if !router.Route(context.Background(), tt.delivery) {
				t.Error("Route() returned false for a no-op delivery")
			}
			if len(rec.calls) != 0 {
				t.Errorf("handlers called = %v, expected none", rec.calls)
			}
		})
	}
}

func TestRoute_HandlerFailuresAreIsolated(t *testing.T) {
	router, reg, rec := setupRouter(t, testSecret)
	mustRegister(t, reg, "first", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"}, rec.handler("first", errors.New("boom")))
	mustRegister(t, reg, "panics", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"}, func(context.Context, *subscription.Event) error {
		rec.calls = append(rec.calls, "panics")
		panic("handler exploded")
	})
	mustRegister(t, reg, "last", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"}, rec.handler("last", nil))

	if !router.Route(context.Background(), signedDelivery("push", pushBody)) {
		t.Error("Route() returned false after handler failures")
	}
	if !reflect.DeepEqual(rec.calls, []string{"first", "panics", "last"}) {
		t.Errorf("handlers called = %v, expected [first panics last]", rec.calls)
	}
}

func TestRoute_HandlersGetIndependentPayloads(t *testing.T) {
	router, reg, rec := setupRouter(t, "")
	mutate := func(_ context.Context, event *subscription.Event) error {
		event.Payload["ref"] = "mutated"
		event.Payload["repository"].(map[string]any)["name"] = "mutated"
		return nil
	}
	mustRegister(t, reg, "mutator", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"}, mutate)
	mustRegister(t, reg, "reader", subscription.EventOptions{Owner: "acme", Repo: "widgets", Event: "push"}, rec.handler("reader", nil))

	router.Route(context.Background(), &Delivery{Event: "push", Body: []byte(pushBody)})

	if got := rec.events[0].Payload["ref"]; got != "refs/heads/main" {
		t.Errorf("second handler saw ref %v, expected refs/heads/main", got)
	}
	repository, ok := rec.events[0].Payload["repository"].(map[string]any)
	if !ok {
		t.Fatalf("repository = %T, expected an object", rec.events[0].Payload["repository"])
	}
	if got := repository["name"]; got != "widgets" {
		t.Errorf("second handler saw repository.name %v, expected widgets", got)
	}
}
