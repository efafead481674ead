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

// Package github provides the GitHub API integration used by the connector.
//
// The connector only needs two endpoints of the REST API: listing the webhooks
// of a repository and creating a new one. Both are exposed through the Client
// interface so the reconciler can be tested against a fake.
//
// Authentication:
//
// The client accepts a personal access token with the admin:repo_hook scope
// (or repo for private repositories). Without a token requests are anonymous,
// which is enough for nothing beyond public reads.
//
// Example usage:
//
//	client, err := github.NewClient(token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	hooks, err := client.ListHooks(ctx, "acme", "widgets")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, h := range hooks {
//	    fmt.Println(h.ID, h.URL, h.Events)
//	}
//
// GitHub Enterprise Server is supported through WithBaseURL.
//
// Retry Logic:
//
// Failed requests are retried with exponential backoff:
//   - Initial backoff: 100 milliseconds
//   - Maximum backoff: 30 seconds
//   - Maximum retries: 3
//
// Retries are performed for rate limits and 5xx gateway errors. When GitHub
// reports a reset time or Retry-After the client waits at least that long,
// capped at the maximum backoff. Other client errors are not retried.
package github
