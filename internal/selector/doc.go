// Package selector chooses practice items for a learner.
//
// The learner's skill rating is mapped onto the 1-10 difficulty scale and an
// ordered chain of strategies fills the request: the item bank in a narrow
// band around the target, then a wider band, then the full scale, and
// finally synthesis through a generation.Generator. The chain stops as soon
// as the requested count is met. When every strategy is exhausted the
// selection is returned with a shortfall rather than an error.
package selector
