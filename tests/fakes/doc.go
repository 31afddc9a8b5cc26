// Package fakes provides manual fake implementations for testing.
//
// Fakes are test doubles that have working implementations but take shortcuts
// compared to production code. They are more realistic than mocks but simpler
// than real implementations, making them ideal for testing.
package fakes
