// Package server hosts the Fiber application shared by every HTTP surface:
// the middleware chain (panic recovery, request ids), the JSON codec and the
// uniform {"error": "..."} failure rendering. It also owns the outbound
// http.Client used for upstream calls. Route registration lives in the proxy
// and routes packages so that this package stays free of domain types.
package server
