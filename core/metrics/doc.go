package metrics

// Package metrics defines the records produced while solving a run and the
// sinks that store them. Sinks like PromSink and InfluxSink live in
// infra/metrics and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when multiple sinks are configured.
// Optional capabilities (market snapshots, iteration samples) are discovered
// by type assertion.
