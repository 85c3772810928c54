// Package profattach implements the profile-attachment core of a post-link
// binary optimizer: it matches functions recorded in a previously captured
// execution profile against functions recovered from a target binary, and
// propagates block, edge, and call-site counts onto that binary's
// control-flow graph.
//
// The matching and propagation core does not parse the profile file, build
// the binary's control flow graph, or infer a stale profile's shape; those
// are external collaborators described by the interfaces in binarycontext.go
// and by the ProfileDocument type in profile.go. The package also ships a
// YAML loader for the profile (LoadDocument) and an in-memory reference
// BinaryContext (RefContext); stale-profile inference is supplied by the
// caller as a StaleProfileInferrer.
package profattach
