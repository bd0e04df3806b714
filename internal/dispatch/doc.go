// Package dispatch selects the method implementation that answers a call.
//
// Candidates are organised as a tree: a Leaf wraps one method.Descriptor and
// a Composite groups the candidates of one layer, or the layers of one
// method name. Resolution flattens the tree with ExtractMethods and hands
// the candidate list to a Matcher, which either picks exactly one
// descriptor or fails with NoApplicableMethodError or AmbiguousMethodError.
//
// Trees are built once by TreeBuilder and are read-only afterwards, so a
// Dispatcher can serve any number of concurrent calls.
package dispatch
