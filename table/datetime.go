package table

import (
	"fmt"
	"strings"

	"github.com/go-sif/castable/errors"
)

// DatetimeMethods builds computed columns from a date, time or datetime column
type DatetimeMethods struct {
	col   *Column
	dtype string
}

// Dt returns the datetime methods of a date, time or datetime column
func (c *Column) Dt() (*DatetimeMethods, error) {
	if !IsDatetime(c.knownDtype()) {
		return nil, errors.IncompatibleTypeError{Op: "dt", Dtype: c.dtype}
	}
	return &DatetimeMethods{col: c, dtype: strings.ToLower(c.dtype)}, nil
}

func (d *DatetimeMethods) part(fn string) (*Column, error) {
	switch d.dtype {
	case "date":
		if fn == "hour" || fn == "minute" {
			return d.col.Compute(fn, "0")
		}
		return d.col.Compute(fn, fn+"({value})")
	case "time":
		if fn == "hour" || fn == "minute" {
			return d.col.Compute(fn, fn+"({value})")
		}
		return d.col.Compute(fn, fn+"(today())")
	}
	switch fn {
	case "month", "day", "year", "week", "qtr":
		return d.col.Compute(fn, fn+"(datepart({value}))")
	}
	return d.col.Compute(fn, fn+"({value})")
}

// date returns an expression for the date part of the value
func (d *DatetimeMethods) date() string {
	switch d.dtype {
	case "date":
		return "{value}"
	case "time":
		return "today()"
	}
	return "datepart({value})"
}

func (d *DatetimeMethods) Year() (*Column, error)   { return d.part("year") }
func (d *DatetimeMethods) Month() (*Column, error)  { return d.part("month") }
func (d *DatetimeMethods) Day() (*Column, error)    { return d.part("day") }
func (d *DatetimeMethods) Hour() (*Column, error)   { return d.part("hour") }
func (d *DatetimeMethods) Minute() (*Column, error) { return d.part("minute") }

// Quarter returns the quarter of the year, 1 to 4
func (d *DatetimeMethods) Quarter() (*Column, error) { return d.part("qtr") }

func (d *DatetimeMethods) Second() (*Column, error) {
	if d.dtype == "date" {
		return d.col.Compute("second", "0")
	}
	return d.col.Compute("second", "int(second({value}))")
}

func (d *DatetimeMethods) Microsecond() (*Column, error) {
	if d.dtype == "date" {
		return d.col.Compute("microsecond", "0")
	}
	return d.col.Compute("microsecond", "int(mod(second({value}), 1) * 1000000)")
}

// Nanosecond is always zero
func (d *DatetimeMethods) Nanosecond() (*Column, error) {
	return d.col.Compute("nanosecond", "0")
}

// Week returns the ISO week of the year
func (d *DatetimeMethods) Week() (*Column, error) {
	return d.col.Compute("week", fmt.Sprintf(`week(%s, "v")`, d.date()))
}

// WeekOfYear is Week
func (d *DatetimeMethods) WeekOfYear() (*Column, error) {
	return d.Week()
}

// DayOfWeek returns the day of the week, Monday=0 to Sunday=6
func (d *DatetimeMethods) DayOfWeek() (*Column, error) {
	return d.col.Compute("weekday", fmt.Sprintf("mod(weekday(%s) + 5, 7)", d.date()))
}

// Weekday is DayOfWeek
func (d *DatetimeMethods) Weekday() (*Column, error) {
	return d.DayOfWeek()
}

func (d *DatetimeMethods) DayOfYear() (*Column, error) {
	return d.col.Compute("dayofyear", fmt.Sprintf("mod(juldate(%s), 1000.)", d.date()))
}

func (d *DatetimeMethods) IsMonthStart() (*Column, error) {
	return d.col.Compute("is_month_start", fmt.Sprintf("(day(%s) = 1)", d.date()))
}

func (d *DatetimeMethods) boundary(name, interval, align string) (*Column, error) {
	date := d.date()
	return d.col.Compute(name, fmt.Sprintf(`(intnx("%s", %s, 0, "%s") = %s)`, interval, date, align, date))
}

func (d *DatetimeMethods) IsMonthEnd() (*Column, error) {
	return d.boundary("is_month_end", "month", "e")
}

func (d *DatetimeMethods) IsQuarterStart() (*Column, error) {
	return d.boundary("is_quarter_start", "qtr", "b")
}

func (d *DatetimeMethods) IsQuarterEnd() (*Column, error) {
	return d.boundary("is_quarter_end", "qtr", "e")
}

func (d *DatetimeMethods) IsYearStart() (*Column, error) {
	return d.boundary("is_year_start", "year", "b")
}

func (d *DatetimeMethods) IsYearEnd() (*Column, error) {
	return d.boundary("is_year_end", "year", "e")
}

// DaysInMonth returns the number of days in the month of the value
func (d *DatetimeMethods) DaysInMonth() (*Column, error) {
	return d.col.Compute("daysinmonth", fmt.Sprintf(`day(intnx("month", %s, 0, "e"))`, d.date()))
}
