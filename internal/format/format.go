// Package format holds the pure display helpers used by the page projection.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is used when neither the snapshot nor the subscription names a zone
const DefaultTimezone = "Etc/UTC"

// NameStyle selects the timezone name representation
type NameStyle int

const (
	// Short is the zone abbreviation, e.g. "CET"
	Short NameStyle = iota
	// Long is the zone's full name, e.g. "Europe/Berlin"
	Long
)

// MinSec formats seconds as "M:SS". Both components are truncated so that
// 59.97 is "0:59" and never "1:00" or "0:60".
func MinSec(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	minutes := math.Trunc(seconds / 60)
	secs := math.Trunc(math.Mod(seconds, 60))
	return fmt.Sprintf("%d:%02d", int64(minutes), int64(secs))
}

// ClockTime returns "HH:MM" for a UNIX timestamp in loc
func ClockTime(unix int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(unix, 0).In(loc).Format("15:04")
}

const (
	_plainLayout = "01/02/2006"
	_shortLayout = "01/02/2006, MST"
)

// TimezoneName returns the viewer zone name of now. The date is formatted
// with and without a zone suffix and the plain form removed from the full one.
func TimezoneName(now time.Time, style NameStyle) string {
	var full string
	if style == Short {
		full = now.Format(_shortLayout)
	} else {
		full = now.Format(_plainLayout) + ", " + longZoneName(now)
	}
	return subtractDate(full, now.Format(_plainLayout))
}

// subtractDate removes plain from full and trims the separators left over.
// When full does not contain plain it is returned unchanged.
func subtractDate(full, plain string) string {
	idx := strings.Index(full, plain)
	if idx < 0 {
		return full
	}
	trimmed := full[:idx] + full[idx+len(plain):]
	return strings.Trim(trimmed, " ,.:;")
}

func longZoneName(now time.Time) string {
	name := now.Location().String()
	if name == "" || name == "Local" || name == "UTC" {
		return "GMT" + now.Format("-07:00")
	}
	return name
}

// StationClock is the station's current time and its offset to the viewer
type StationClock struct {
	Time          string
	Timezone      string
	OffsetHHMM    string
	OffsetMinutes int
}

// StationTime resolves the station zone (snapshot, then fallback, then
// DefaultTimezone) and computes the station wall clock and its offset to local.
func StationTime(now time.Time, snapshotTZ, fallbackTZ string, local *time.Location) StationClock {
	if local == nil {
		local = time.Local
	}

	tz := snapshotTZ
	if tz == "" {
		tz = fallbackTZ
	}
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		tz = DefaultTimezone
		loc = time.UTC
	}

	stationNow := now.In(loc)
	_, stationOffset := stationNow.Zone()
	_, localOffset := now.In(local).Zone()
	diff := (stationOffset - localOffset) / 60

	return StationClock{
		Time:          stationNow.Format("15:04"),
		Timezone:      tz,
		OffsetHHMM:    OffsetHHMM(diff),
		OffsetMinutes: diff,
	}
}

// OffsetHHMM formats a minute offset as signed "H:MM": 330 is "+5:30",
// -390 is "-6:30", 0 is "0:00".
func OffsetHHMM(minutes int) string {
	sign := ""
	switch {
	case minutes > 0:
		sign = "+"
	case minutes < 0:
		sign = "-"
		minutes = -minutes
	}
	return sign + strconv.Itoa(minutes/60) + ":" + fmt.Sprintf("%02d", minutes%60)
}

// Float renders a number the way the page expects attribute values
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
