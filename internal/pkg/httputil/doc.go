// Package httputil holds the JSON response and request helpers shared by
// every HTTP handler, so error envelopes look the same on all endpoints.
package httputil
