// Package testutil contains builders and scripted models shared by tests
// across packages. Not intended for production usage.
package testutil
