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
	"net/http"
)

// DefaultPath is where the connector listens for deliveries unless configured otherwise
const DefaultPath = "/reshuffle-github-connector/webhook"

// MaxPayloadBytes is GitHub's upper bound on webhook payload size
const MaxPayloadBytes = 25 << 20

// Headers GitHub sets on every delivery
const (
	EventHeader        = "X-GitHub-Event"
	DeliveryHeader     = "X-GitHub-Delivery"
	Signature256Header = "X-Hub-Signature-256"
	SignatureHeader    = "X-Hub-Signature"
)

// PingEvent is sent by GitHub when a webhook is created
const PingEvent = "ping"

// Delivery is one inbound webhook request
type Delivery struct {
	Event        string
	ID           string
	Signature256 string
	Signature    string
	Body         []byte
}

// DeliveryFromRequest collects the GitHub headers of r around an already read body
func DeliveryFromRequest(r *http.Request, body []byte) *Delivery {
	return &Delivery{
		Event:        r.Header.Get(EventHeader),
		ID:           r.Header.Get(DeliveryHeader),
		Signature256: r.Header.Get(Signature256Header),
		Signature:    r.Header.Get(SignatureHeader),
		Body:         body,
	}
}

// deliveryPayload holds the fields routing needs from any event body
type deliveryPayload struct {
	Action     string     `json:"action"`
	Repository Repository `json:"repository"`
}

// Repository contains repository metadata
type Repository struct {
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Owner    Owner  `json:"owner"`
}

// Owner represents the repository owner
type Owner struct {
	Login string `json:"login"`
}
