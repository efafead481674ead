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

// Package webhook receives GitHub webhook deliveries and routes them to
// subscriptions.
//
// Delivery handling:
//
// Each POST to the webhook path is read in full and turned into a Delivery.
// Deliveries without an actionable event (GitHub's ping, or an empty event
// header with no payload action) are acknowledged straight away without
// signature checks or dispatch.
//
// Webhook Security:
//
// When a secret is configured the HMAC signature of the raw body is checked.
// X-Hub-Signature-256 is preferred; the legacy SHA-1 X-Hub-Signature header is
// accepted when it is the only one present. Deliveries with a missing or bad
// signature are rejected with HTTP 401 and nothing is dispatched.
//
// Event Matching:
//
// A subscription matches when owner and repository equal the payload's
// repository and one of its selectors is "*", the X-GitHub-Event name, or the
// payload's action. Matching handlers run one after another in registration
// order. A failing or panicking handler is logged and does not stop the rest.
// The delivery is acknowledged with an empty 200 once dispatch is complete.
//
// Example usage:
//
//	router := webhook.NewRouter(registry, secret)
//	server := webhook.NewServer("", 8080, webhook.DefaultPath, router)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
