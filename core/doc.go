// Package core holds the types shared by every layer of campaignmesh:
//
//   - State and RunContext (the run-scoped key/value store threaded through a
//     composition tree)
//   - Events, Content and Parts (what agents emit while they run)
//   - Sessions (conversation containers kept for the lifetime of the process)
//   - ToolContext (the read-only surface handed to tool implementations)
//   - the error kinds raised while building and running compositions
//
// Concrete agents, models and tools live in their own packages and only
// depend on the small interfaces defined here.
package core
