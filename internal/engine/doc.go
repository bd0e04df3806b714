// Package engine runs calls against a linked rule project.
//
// One call goes through four steps:
//
//  1. Resolve: the method name selects a dispatch tree and the dispatcher
//     picks the single most specific applicable implementation.
//  2. Invoke: the implementation body runs inside its own invocation
//     context. Body errors are returned as they are.
//  3. Journal: when a Journal is configured the call is recorded with its
//     canonical args, env, result digest or error code.
//  4. Metrics: the outcome is counted by method and error code.
//
// Every call is stamped with a seq from a logical Clock, so a journal can be
// replayed in the order it was written. Replay re-runs recorded calls under
// their original IDs and reports any call whose outcome changed.
//
// CallBatch fans a slice of requests out over a bounded ants pool and returns
// responses in request order.
package engine
