// Package infra holds technical adapters: cost matrix providers, solver
// engines, MQTT publishing, metrics sinks and the request archive. Each
// adapter depends only on the interfaces declared in the core packages.
package infra
