// Package loadbalancer implements backend endpoint pools, selection
// algorithms, and health checking for http-kind services (component C2 of
// the Nylon design).
//
// Each http-service owns one Pool: an ordered list of Endpoints plus
// per-endpoint health state. A Pool is paired with a Selector implementing
// one of four algorithms (round_robin, weighted, random, consistent); all
// four restrict selection to healthy endpoints and fall back to the full
// list when none are healthy, per spec §4.3's fail-open health policy.
package loadbalancer
