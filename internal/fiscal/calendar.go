// Package fiscal maps calendar dates onto the April–March fiscal year.
package fiscal

import "time"

// monthOrder is the canonical traversal order of calendar months within a
// fiscal year.
var monthOrder = [12]int{4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2, 3}

// StartYear returns the start year of the fiscal year containing the given
// calendar year and month. The fiscal year starts in April, so January
// through March belong to the fiscal year that started the previous year.
func StartYear(calendarYear, calendarMonth int) int {
	if calendarMonth >= int(time.April) {
		return calendarYear
	}
	return calendarYear - 1
}

// MonthOrder returns the calendar months of a fiscal year in fiscal order.
func MonthOrder() [12]int {
	return monthOrder
}

// IndexOf returns the 1-based fiscal month index of a calendar month
// (April = 1, March = 12). Zero for out-of-range input.
func IndexOf(calendarMonth int) int {
	if calendarMonth < 1 || calendarMonth > 12 {
		return 0
	}
	if calendarMonth >= 4 {
		return calendarMonth - 3
	}
	return calendarMonth + 9
}

// CalendarDate returns the calendar year and month of the given 1-based
// fiscal month index within the fiscal year starting at fyStart.
func CalendarDate(fyStart, fiscalIndex int) (year, month int) {
	month = monthOrder[fiscalIndex-1]
	year = fyStart
	if month < 4 {
		year = fyStart + 1
	}
	return year, month
}

// Next advances a (fiscal year, calendar month) cell by one fiscal month,
// rolling into the next fiscal year after March.
func Next(fyStart, calendarMonth int) (int, int) {
	idx := IndexOf(calendarMonth)
	if idx == 12 {
		return fyStart + 1, 4
	}
	return fyStart, monthOrder[idx]
}
