// Package infra holds the adapters behind the core interfaces: zerolog
// loggers, the Prometheus, InfluxDB and MQTT metrics sinks and the Sentry
// monitor. Packages below it depend on core, never the reverse.
package infra
