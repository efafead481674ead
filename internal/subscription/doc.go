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

// Package subscription holds the connector's registered interest in GitHub
// repository events.
//
// A Subscription names an owner, a repository and one or more event
// selectors. A selector is either a GitHub event name ("push",
// "pull_request"), a payload action ("opened", "closed") or the wildcard "*".
// Subscriptions are immutable once registered and live in a Registry that
// preserves registration order, which is also the order handlers run in.
//
// Registry.Targets folds every selector into the events requested for the
// repository's webhook. GitHub accepts only event names and "*" there, so a
// repository with an action selector cannot get a new webhook created (GitHub
// answers 422). It needs an existing webhook that already covers the
// selectors, such as one subscribed to "*".
package subscription
