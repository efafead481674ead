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

// Package reconcile makes sure every subscribed repository has a webhook
// pointing back at the connector.
//
// Reconciliation runs once at startup. Subscriptions are grouped by
// repository; for each repository the existing webhooks are listed and one
// whose URL, content type, TLS setting and event list already cover the
// request is reused. Otherwise a single webhook is created for the union of
// requested events. Existing webhooks are never modified.
//
// Repositories are reconciled independently. A failure for one repository
// does not stop the others; all failures are returned together once every
// repository has been attempted.
//
// Example usage:
//
//	r := reconcile.New(client, reconcile.WithConcurrency(4))
//	result, err := r.Reconcile(ctx, registry.Targets(), reconcile.Options{
//		BaseURL:     "https://runtime.example",
//		WebhookPath: "/reshuffle-github-connector/webhook",
//		Secret:      secret,
//	})
package reconcile
