// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api holds the contracts shared by the loop and its resources: the
// ErrorCode taxonomy, the events every resource publishes, the reactor
// interface and the debug probe surface.
package api
