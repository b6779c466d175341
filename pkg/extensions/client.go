// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// UnknownClient is the key used when no address can be determined.
const UnknownClient = "unknown"

// ClientIdentifier chooses the key a request is rate limited under.
//
// remoteIP is the address resolved by the HTTP layer, which already honors
// the trusted-proxy configuration. Implementations must not trust
// forwarding headers on their own.
type ClientIdentifier interface {
	Identify(r *http.Request, remoteIP string) string
}

// IPIdentifier keys clients by address.
type IPIdentifier struct{}

func (IPIdentifier) Identify(_ *http.Request, remoteIP string) string {
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		return ip
	}
	return UnknownClient
}

// HeaderIdentifier keys clients by a credential header, hashed so the raw
// value never appears in counter keys or logs. Requests without the header
// fall back to their address.
type HeaderIdentifier struct {
	Header string
}

func (h *HeaderIdentifier) Identify(r *http.Request, remoteIP string) string {
	if r != nil && h.Header != "" {
		if v := strings.TrimSpace(r.Header.Get(h.Header)); v != "" {
			sum := sha256.Sum256([]byte(v))
			return "key-" + hex.EncodeToString(sum[:8])
		}
	}
	return IPIdentifier{}.Identify(r, remoteIP)
}

var (
	_ ClientIdentifier = IPIdentifier{}
	_ ClientIdentifier = (*IPIdentifier)(nil)
	_ ClientIdentifier = (*HeaderIdentifier)(nil)
)
