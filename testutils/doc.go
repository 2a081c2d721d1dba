// Package testutils provides testing utilities shared across the test suites.
//
// It contains in-memory implementations of the store interfaces, a fixed
// clock, and capturing sinks for delivery and auto-replies.
package testutils
