// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
)

// Values GitHub expects for repository webhooks managed by the connector.
const (
	// HookName is the only name GitHub accepts for repository webhooks
	HookName = "web"
	// ContentTypeJSON asks GitHub to deliver payloads as application/json
	ContentTypeJSON = "json"
	// InsecureSSLDisabled keeps TLS certificate verification on
	InsecureSSLDisabled = "0"
)

// Client interface defines the contract for interacting with GitHub API
type Client interface {
	// ListHooks retrieves every webhook configured on a repository
	ListHooks(ctx context.Context, owner, repo string) ([]*Hook, error)
	// CreateHook registers a new webhook on a repository
	CreateHook(ctx context.Context, owner, repo string, req *HookRequest) (*Hook, error)
}

// Hook represents a repository webhook as GitHub reports it
type Hook struct {
	ID          int64
	Name        string
	URL         string // delivery target (config.url)
	ContentType string // json or form
	InsecureSSL string // "0" verifies TLS, "1" skips verification
	Events      []string
	Active      bool
}

// HookRequest describes a webhook to create
type HookRequest struct {
	URL         string
	ContentType string
	InsecureSSL string
	Secret      string // optional
	Events      []string
}
