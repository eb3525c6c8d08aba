// Package source talks to the university timetable site: group timetables,
// the group index and the academic weeks calendar.
package source
