// Package agent builds composition trees of agents.
//
// A tree is made of three node kinds:
//
//  1. ModelAgent: a leaf that renders its instruction against the run
//     state, drives a model/tool loop and publishes its answer under an
//     optional output key
//  2. SequentialAgent: runs its children in order against the same,
//     progressively updated state and aborts on the first failure
//  3. ParallelAgent: runs its children concurrently on forked snapshots of
//     the state, collects every failure and merges all outputs atomically
//
// The set of node kinds is closed. Trees are immutable once built; only the
// run state changes while a tree executes. Validate checks statically that
// every instruction placeholder is produced before it is read.
package agent
