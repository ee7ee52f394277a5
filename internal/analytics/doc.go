// Package analytics implements the dashboard's three engines: calendar
// time-series aggregation with cumulative sentiment metrics, n-gram
// frequency tables, and evidence search over raw reviews.
//
// Every function is a pure transformation of its input. Results are new
// values and never alias slices the caller may reorder, so concurrent calls
// over the same snapshot need no locking.
package analytics
