// Package runner executes an agent tree for one turn of a session.
//
// A Runner seeds the run state from the session's committed state plus the
// caller's initial values, streams the events agents emit, records them in
// the session history and, only when the whole tree succeeded, commits the
// keys written during the run back to the session. Runs can be cancelled
// by ID.
package runner
