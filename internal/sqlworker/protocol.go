package sqlworker

// Store channel protocol.
//
// The worker goroutine exclusively owns the embedded database. Everything
// else talks to it through these message types over its request/response
// channels; no other code touches the *sql.DB.
//
//   Action   Params                       Result
//   ──────   ──────────────────────────   ─────────────────────────────
//   open     (none; ID must be OpenID)    empty Results, or Err
//   exec     SQL text + bound params      Results[0] = one ResultSet for
//                                         row-returning statements, empty
//                                         Results otherwise
//
// Request IDs correlate responses to requests; the worker echoes the ID
// verbatim and guarantees exactly one response per request. It makes no
// cross-request ordering promise.

const (
	// ActionOpen initializes the store. It must be the first request and
	// carries the reserved id OpenID.
	ActionOpen = "open"

	// ActionExec runs one SQL statement with bound parameters.
	ActionExec = "exec"

	// OpenID is the reserved request id for ActionOpen.
	OpenID uint64 = 1
)

// Request is one message to the store worker.
type Request struct {
	ID     uint64
	Action string
	SQL    string
	Params []any
}

// ResultSet is one column-oriented row set returned by the store.
type ResultSet struct {
	Columns []string
	Values  [][]any
}

// Response is the worker's reply to one Request. Err is the store execution
// error message, empty on success. Results is empty for statements that
// return no rows.
type Response struct {
	ID      uint64
	Results []ResultSet
	Err     string
}
