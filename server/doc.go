// Package server exposes the content layer over HTTP.
//
// Content routes return envelope JSON ({"data","source","error","requestId"})
// so the site can show where each response came from. Health routes serve
// the CMS monitor's snapshot and the aggregate probes, /metrics serves
// Prometheus, and the admin routes require an HS256 bearer token.
package server
