// Package domain models the place planner: resolved locations, enrichment
// tasks and their results, and the composed plan returned to callers.
//
// # Place keys
//
// A place query is free text ("Paris", "  Eiffel Tower "). The geocode cache
// is keyed by the trimmed, lowercased query, see [NormalizePlaceKey]. Keys are
// never rewritten after a record is stored, so "Paris" and "paris " share one
// entry while "Paris, France" gets its own.
//
// # Error taxonomy
//
//	ErrNotFound     the primary provider answered with an empty result set.
//	                Authoritative: not retried, not sent to the secondary, not cached.
//	UpstreamError   a provider call failed. Class tells the resolver what to do:
//	                  ClassRateLimited   HTTP 403/429, retried with backoff
//	                  ClassConnectivity  dial/read failures and timeouts, retried with backoff
//	                  ClassHard          any other status or a malformed body, sent to the secondary
//	ErrUnknownTask  a plan request named a task kind the service does not run.
//
// Cache I/O failures are not part of the taxonomy returned to callers. Stores
// report them, the resolver logs and counts them and carries on without cache.
//
// # Enrichment results
//
// Each requested [TaskKind] produces exactly one [TaskResult]: either the
// adapter's value or the failure message. Failures never escalate beyond
// their own slot; they are visible in the plan's raw mapping and omitted from
// the composed text.
package domain
