package cell

import (
	"math"
	"time"
)

// Bounds of plausible spreadsheet serial dates: 1900-01-01 through 9999-12-31.
const (
	MinSerial = 1
	MaxSerial = 2958465
)

var (
	epoch1900 = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// PlausibleSerial reports whether v could be a spreadsheet date serial.
func PlausibleSerial(v float64) bool {
	return v >= MinSerial && v <= MaxSerial
}

// SerialToTime converts a spreadsheet serial date to a UTC instant rounded to
// the microsecond. In the 1900 system serials below 60 are shifted by one day
// to account for the fictitious 1900-02-29.
func SerialToTime(serial float64, date1904 bool) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 || serial > MaxSerial {
		return time.Time{}, false
	}
	epoch := epoch1900
	if date1904 {
		epoch = epoch1904
	} else if serial > 0 && serial < 60 {
		serial++
	}
	days := math.Floor(serial)
	us := math.Round((serial - days) * 86400e6)
	t := epoch.AddDate(0, 0, int(days)).Add(time.Duration(us) * time.Microsecond)
	return t, true
}
