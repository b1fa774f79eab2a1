// Package observe provides tracing, metrics, and structured logging for
// fragment resolution.
//
// It is pure instrumentation: the fragment engine wraps its resolve step
// with a Middleware built from an Observer, and every other component takes
// a Logger. Exporters are selected by name in Config.
package observe
