package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error response. The message is the stable,
// user-visible category text; internal error detail never crosses this
// boundary.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Unavailable reports a downstream store or delivery failure without
// exposing its detail.
func Unavailable(w http.ResponseWriter) {
	Error(w, http.StatusServiceUnavailable, "service unavailable")
}

// IsMobileClient reports whether the request comes from a mobile client
// that expects tokens in the response body instead of cookies.
func IsMobileClient(r *http.Request) bool {
	return r.Header.Get("X-Client-Type") == "mobile"
}
