// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic attribute keys for the gateway's spans and logs. These follow
// OpenTelemetry naming conventions where applicable (e.g. the gen_ai.*
// namespace) and otherwise use a gateway.* namespace of our own.
const (
	// Backend REST client attributes.
	AttrBackendEndpoint   = "gateway.backend.endpoint"
	AttrBackendStatus     = "gateway.backend.status"
	AttrBackendDurationMs = "gateway.backend.duration_ms"

	// Cache hierarchy attributes.
	AttrCacheKey  = "gateway.cache.key"
	AttrCacheTier = "gateway.cache.tier" // "l1", "l2", "miss"
	AttrCacheHit  = "gateway.cache.hit"

	// Dependency graph attributes.
	AttrGraphJobID     = "gateway.graph.job_id"
	AttrGraphDepth     = "gateway.graph.depth"
	AttrGraphNodeCount = "gateway.graph.node_count"
	AttrGraphEdgeCount = "gateway.graph.edge_count"
	AttrGraphCacheHit  = "gateway.graph.cache_hit"

	// Proactive poller attributes.
	AttrPollerIteration = "gateway.poller.iteration"
	AttrPollerFailures  = "gateway.poller.consecutive_failures"

	// LLM fallback chain attributes (extending standard gen_ai conventions).
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
	AttrLLMAttempt      = "gateway.llm.attempt"
	AttrLLMFallback     = "gateway.llm.fallback_used"

	// Circuit breaker attributes.
	AttrBreakerName  = "gateway.circuitbreaker.name"
	AttrBreakerState = "gateway.circuitbreaker.state"

	// Health/recovery attributes.
	AttrComponent       = "gateway.health.component"
	AttrComponentStatus = "gateway.health.status"
	AttrRecoveryAttempt = "gateway.recovery.attempted"
	AttrRecoverySuccess = "gateway.recovery.succeeded"

	// Correlation attribute, carried from request header to span/log.
	AttrCorrelationID = "gateway.correlation_id"
)

// BackendRequestAttributes returns attributes for a backend REST call span.
func BackendRequestAttributes(endpoint, status string, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrBackendEndpoint, endpoint),
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrBackendStatus, status))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrBackendDurationMs, durationMs))
	}
	return attrs
}

// CacheAttributes returns attributes for a cache hierarchy lookup.
func CacheAttributes(key, tier string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheKey, key),
		attribute.String(AttrCacheTier, tier),
		attribute.Bool(AttrCacheHit, hit),
	}
}

// GraphBuildAttributes returns attributes for a dependency graph build.
func GraphBuildAttributes(jobID string, depth, nodes, edges int, cacheHit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrGraphJobID, jobID),
		attribute.Int(AttrGraphDepth, depth),
		attribute.Int(AttrGraphNodeCount, nodes),
		attribute.Int(AttrGraphEdgeCount, edges),
		attribute.Bool(AttrGraphCacheHit, cacheHit),
	}
}

// PollerAttributes returns attributes for a poller iteration.
func PollerAttributes(iteration, consecutiveFailures int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrPollerIteration, iteration),
		attribute.Int(AttrPollerFailures, consecutiveFailures),
	}
}

// LLMCallAttributes returns attributes for an LLM fallback-chain call span.
func LLMCallAttributes(model, provider string, msgCount, attempt int, fallbackUsed bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
		attribute.Int(AttrLLMAttempt, attempt),
		attribute.Bool(AttrLLMFallback, fallbackUsed),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes for a completed LLM call.
func LLMUsageAttributes(inputTokens, outputTokens int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	return attrs
}

// BreakerStateAttributes returns attributes describing a circuit breaker's
// current state (0=closed, 1=half-open, 2=open).
func BreakerStateAttributes(name string, state int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrBreakerName, name),
		attribute.Int64(AttrBreakerState, state),
	}
}

// ComponentHealthAttributes returns attributes for a health check result.
func ComponentHealthAttributes(component, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrComponent, component),
		attribute.String(AttrComponentStatus, status),
	}
}

// RecoveryAttributes returns attributes for a recovery attempt outcome.
func RecoveryAttributes(component string, succeeded bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrComponent, component),
		attribute.Bool(AttrRecoveryAttempt, true),
		attribute.Bool(AttrRecoverySuccess, succeeded),
	}
}
