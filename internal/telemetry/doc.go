// Package telemetry sets up OpenTelemetry tracing and metrics for ragd.
//
// Spans from the vector index, ingestion workers and query pipeline are
// exported over OTLP (gRPC or HTTP/protobuf) when enabled:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sample_rate: 1.0
//	  metrics_interval: 15s
//
// Initialization failures never stop the daemon; the instance is marked
// degraded and the global no-op providers stay in place.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
