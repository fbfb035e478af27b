// File: control/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Configuration, logging, metrics export and debug introspection around a
// uv loop.
//
// Provides:
//   - YAML configuration with validation, converted into loop options
//   - A ConfigStore with snapshot reads and reload listeners, refreshed by
//     a file watch running on the loop itself
//   - zerolog logger construction
//   - A Prometheus collector over loop counters published by the loop
//   - Named debug probes for state dumps
//
// Loop state is only read on the loop goroutine; everything exported to
// other goroutines goes through the registry and store snapshots.
package control
