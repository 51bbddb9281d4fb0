// Package cms is the raw query client for the primary content source, the
// Sanity HTTP query API.
//
// The client does not retry. Non-2xx responses are returned as
// *resilience.StatusError so that resilience.Classify can sort them into
// rate-limit, server and client faults; retries and the circuit breaker are
// applied one layer up by content.Client.
package cms
