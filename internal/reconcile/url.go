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
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrInvalidBaseURL is returned when the runtime base URL is missing or
	// is not a bare https origin
	ErrInvalidBaseURL = errors.New("invalid runtime base URL")
	// ErrInvalidWebhookPath is returned for an empty webhook path
	ErrInvalidWebhookPath = errors.New("invalid webhook path")
)

// ValidateBaseURL checks that raw is an https origin: scheme, host and an
// optional port, with no credentials, path, query or fragment. A single
// trailing slash is tolerated. The normalized origin is returned.
func ValidateBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: runtime base URL is required", ErrInvalidBaseURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}

	switch {
	case u.Scheme != "https":
		return nil, fmt.Errorf("%w: %q must use https", ErrInvalidBaseURL, raw)
	case u.Opaque != "" || u.Hostname() == "" || strings.HasSuffix(u.Host, ":"):
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidBaseURL, raw)
	case u.User != nil:
		return nil, fmt.Errorf("%w: %q must not contain credentials", ErrInvalidBaseURL, raw)
	case u.Path != "" && u.Path != "/":
		return nil, fmt.Errorf("%w: %q must not contain a path", ErrInvalidBaseURL, raw)
	case u.RawQuery != "" || u.ForceQuery || u.Fragment != "":
		return nil, fmt.Errorf("%w: %q must not contain a query or fragment", ErrInvalidBaseURL, raw)
	}

	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%w: %q has an invalid port", ErrInvalidBaseURL, raw)
		}
	}

	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// Options carries the connector settings reconciliation depends on.
type Options struct {
	BaseURL     string
	WebhookPath string
	Secret      string
}

// CallbackURL returns the URL GitHub should deliver to: the validated base
// URL joined with the webhook path.
func (o Options) CallbackURL() (string, error) {
	base, err := ValidateBaseURL(o.BaseURL)
	if err != nil {
		return "", err
	}

	path := strings.TrimSpace(o.WebhookPath)
	if path == "" {
		return "", ErrInvalidWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base.String() + path, nil
}
