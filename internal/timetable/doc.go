// Package timetable turns the upstream group timetable page into a normalized
// per-day lesson list.
//
// The pipeline is pure and CPU-only:
//   - ParseWeeks / WeekSet.Format: week-range expressions
//   - ParseCell: one timetable cell -> candidate lessons
//   - Resolve: numerator/denominator candidates + current week -> at most one lesson
//   - Assemble: full page -> ordered days + detected current week
package timetable
