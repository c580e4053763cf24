// Package httpio holds small HTTP helpers shared by the service
// dispatcher and the proxy action: building the Forwarded header per RFC
// 7239, and the handful of locally generated responses every request
// path can produce.
package httpio

import (
	"fmt"
	"net/http"
)

// Forwarded returns the value this proxy adds to (or starts) the
// Forwarded header of a request being sent upstream. host is the value
// of the inbound Host header, falling back to serverAddr when the
// request carried none. If the request already had a Forwarded header,
// its value is kept and this hop's entry is appended after it, so a
// chain of proxies accumulates one entry per hop — never overwritten.
func Forwarded(r *http.Request, serverAddr, clientAddr string) string {
	host := r.Host
	if host == "" {
		host = serverAddr
	}

	entry := fmt.Sprintf("for=%s;by=%s;host=%s", clientAddr, serverAddr, host)

	if previous := r.Header.Get("Forwarded"); previous != "" {
		return previous + ", " + entry
	}
	return entry
}
