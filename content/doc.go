// Package content is the data-access layer the site reads posts and case
// studies through.
//
// Every read goes to the primary CMS through a Client, which applies the
// response cache, the circuit breaker, retries and a per-attempt timeout. When
// the primary read fails for any reason, ExecuteWithFallback serves the legacy
// API instead. A legacy answer is a degraded success: its Error is nil and the
// primary failure is kept in PrimaryFailure.
//
//	env, err := svc.ListPosts(ctx, content.ListOptions{Limit: 10})
//	if err != nil {
//	    // both sources failed; err is a *content.FallbackError
//	}
//	if env.Source == content.SourceLegacy {
//	    log.Printf("served from legacy: %v", env.PrimaryFailure)
//	}
//
// Legacy documents are normalized into the same Post and CaseStudy types, with
// defaults filled in for fields the legacy API omits.
package content
