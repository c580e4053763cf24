package httpio

import "net/http"

// ServerHeaderValue is the Server header rxh stamps on every response it
// generates or forwards, including ones answered locally (404, 502).
const ServerHeaderValue = "rxh"

// SetServerHeader stamps the Server header on h. Call it on every
// response this process writes, proxied or local.
func SetServerHeader(h http.Header) {
	h.Set("Server", ServerHeaderValue)
}

// NotFound writes a bare 404 carrying the Server header, used when no
// configured pattern's URI prefix matches the request.
func NotFound(w http.ResponseWriter) {
	SetServerHeader(w.Header())
	w.WriteHeader(http.StatusNotFound)
}

// BadGateway writes a bare 502 carrying the Server header, used when a
// forward attempt's dial or upstream round trip fails.
func BadGateway(w http.ResponseWriter) {
	SetServerHeader(w.Header())
	w.WriteHeader(http.StatusBadGateway)
}
