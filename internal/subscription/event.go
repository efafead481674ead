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
	"maps"

	gogithub "github.com/google/go-github/v66/github"
)

// Event is what a Handler receives for one matched delivery.
type Event struct {
	// Subscription that matched the delivery
	Subscription *Subscription
	// Name is the GitHub event name from the X-GitHub-Event header
	Name string
	// Action is the payload's action field, empty for events without one
	Action string
	// DeliveryID is the X-GitHub-Delivery GUID
	DeliveryID string
	// Raw is the undecoded request body
	Raw []byte
	// Payload holds the subscription fields (id, owner, repo, events)
	// overlaid with every top-level field of the body. Body fields win.
	Payload map[string]any
}

// NewEvent builds the event handed to sub's handler. body is the decoded
// delivery; its top-level map is not modified but nested values are shared
// with the event.
func NewEvent(sub *Subscription, name, action, deliveryID string, raw []byte, body map[string]any) *Event {
	payload := sub.metadata()
	maps.Copy(payload, body)

	return &Event{
		Subscription: sub,
		Name:         name,
		Action:       action,
		DeliveryID:   deliveryID,
		Raw:          raw,
		Payload:      payload,
	}
}

// Parse decodes the raw body into the matching go-github event struct,
// e.g. *github.PushEvent for "push".
func (e *Event) Parse() (any, error) {
	return gogithub.ParseWebHook(e.Name, e.Raw)
}
