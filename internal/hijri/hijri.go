// Package hijri converts between Gregorian and Hijri dates using the tabular
// (civil) Islamic calendar. The engine uses Hijri dates for display fields
// only; all duration arithmetic stays in Gregorian days to avoid compounding
// conversion drift.
package hijri

import (
	"strconv"
	"time"
)

const civilEpochJDN = 1948440

// Date is a tabular Hijri calendar date.
type Date struct {
	Year  int
	Month int
	Day   int
}

var monthNames = [12]string{
	"Muharram", "Safar", "Rabi al-Awwal", "Rabi al-Thani",
	"Jumada al-Awwal", "Jumada al-Thani", "Rajab", "Shaban",
	"Ramadan", "Shawwal", "Dhu al-Qadah", "Dhu al-Hijjah",
}

// MonthName returns the transliterated month name, or an empty string for an
// out-of-range month.
func (d Date) MonthName() string {
	if d.Month < 1 || d.Month > 12 {
		return ""
	}
	return monthNames[d.Month-1]
}

// String formats the date as "D MonthName YYYY AH".
func (d Date) String() string {
	return strconv.Itoa(d.Day) + " " + d.MonthName() + " " + strconv.Itoa(d.Year) + " AH"
}

// FromGregorian converts a Gregorian calendar time to a Hijri date.
func FromGregorian(t time.Time) Date {
	y, m, day := t.Date()
	return fromJDN(gregorianToJDN(y, int(m), day))
}

// ToGregorian converts a Hijri date to a Gregorian time at midnight UTC.
func ToGregorian(d Date) time.Time {
	y, m, day := jdnToGregorian(toJDN(d))
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

func gregorianToJDN(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

func jdnToGregorian(jdn int) (year, month, day int) {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153

	day = e - (153*m+2)/5 + 1
	month = m + 3 - 12*(m/10)
	year = 100*b + d - 4800 + m/10
	return year, month, day
}

func fromJDN(jdn int) Date {
	l := jdn - civilEpochJDN + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29

	month := (24 * l) / 709
	day := l - (709*month)/24
	year := 30*n + j - 30
	return Date{Year: year, Month: month, Day: day}
}

func toJDN(d Date) int {
	return (11*d.Year+3)/30 + 354*d.Year + 30*d.Month -
		(d.Month-1)/2 + d.Day + civilEpochJDN - 385
}
