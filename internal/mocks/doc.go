// Package mocks provides shared test doubles.
//
// MockGenerator stands in for the language model in selector, task and
// service tests:
//
//	gen := mocks.NewEchoGenerator()
//	sel := selector.NewSelector(ratings, audits, selector.DefaultChain(bank, gen, 10), logger)
//
// Set GenerateFn or Err to script failures.
package mocks
