// RunFilters describe user-provided filters to narrow the run history.
package dto

import "time"

type RunFilters struct {
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
