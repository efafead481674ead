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
	"errors"
	"fmt"

	gogithub "github.com/google/go-github/v66/github"
)

var (
	// ErrMissingSignature is returned when neither signature header is set
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when the signature does not match the body
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// signatureHeader returns the signature to check, preferring SHA-256
func (d *Delivery) signatureHeader() string {
	if d.Signature256 != "" {
		return d.Signature256
	}
	return d.Signature
}

// VerifySignature checks the delivery's HMAC signature against secret.
// Signatures are "sha256=<hex>" or, from the legacy header, "sha1=<hex>".
func VerifySignature(d *Delivery, secret string) error {
	signature := d.signatureHeader()
	if signature == "" {
		return ErrMissingSignature
	}
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}

	if err := gogithub.ValidateSignature(signature, d.Body, []byte(secret)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
