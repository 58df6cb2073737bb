// Package pager implements cursor-based pagination over a descending log
// stream.
//
// A page is loaded by asking the store for PageSize+1 records after a cursor;
// the extra record only proves that another page exists. Forward navigation
// resumes after the last displayed record. Backward navigation resets to page
// 1 unless the BackwardSeek policy is selected, in which case visited pages are
// refetched from a cursor stack. The total count is approximate and is taken
// from page-1 fetches only.
//
// The transitions (PlanGoTo, PlanPageSize, Apply, Fail) are pure functions
// over State. Controller adds locking and request sequencing so that only the
// most recently issued fetch is applied.
package pager
