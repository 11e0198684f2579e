package taskdb

import (
	"fmt"
	"math"
	"time"
)

// solarSlack absorbs the error of the sunrise equation against the
// scheduler's own ephemeris.
const solarSlack = 5 * time.Minute

// solarEvent is one kind of daily solar event at a fixed horizon.
type solarEvent struct {
	// horizon is the sun's altitude in degrees when the event happens.
	horizon float64
	// sign picks the event side of solar noon: -1 rising, +1 setting, 0 noon.
	sign float64
}

var solarEvents = map[string]solarEvent{
	"dawn_astronomical": {horizon: -18, sign: -1},
	"dawn_nautical":     {horizon: -12, sign: -1},
	"dawn_civil":        {horizon: -6, sign: -1},
	"sunrise":           {horizon: -0.833, sign: -1},
	"solar_noon":        {horizon: 0, sign: 0},
	"sunset":            {horizon: -0.833, sign: 1},
	"dusk_civil":        {horizon: -6, sign: 1},
	"dusk_nautical":     {horizon: -12, sign: 1},
	"dusk_astronomical": {horizon: -18, sign: 1},
}

// Solar places a named solar event at a location. Longitude is east positive.
type Solar struct {
	Event     string
	Latitude  float64
	Longitude float64
	ev        solarEvent
}

// NewSolar validates event and coordinates.
func NewSolar(event string, lat, lon float64) (Solar, error) {
	ev, ok := solarEvents[event]
	if !ok {
		return Solar{}, fmt.Errorf("unknown solar event %q", event)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Solar{}, fmt.Errorf("solar coordinates out of range: %g,%g", lat, lon)
	}
	return Solar{Event: event, Latitude: lat, Longitude: lon, ev: ev}, nil
}

const (
	unixEpochJD = 2440587.5
	j2000JD     = 2451545.0
	obliquity   = 23.4397
	maxScanDays = 370
)

// Next returns the first occurrence strictly after t. It reports false when
// the event does not happen within a year, as near the poles.
func (s Solar) Next(t time.Time) (time.Time, bool) {
	start := math.Floor(julian(t) - j2000JD)
	for n := start - 1; n < start+maxScanDays; n++ {
		jd, ok := s.on(n)
		if !ok {
			continue
		}
		if at := fromJulian(jd); at.After(t) {
			return at, true
		}
	}
	return time.Time{}, false
}

// on computes the event for the solar day n days after J2000.
func (s Solar) on(n float64) (float64, bool) {
	mean := n - s.Longitude/360
	m := math.Mod(357.5291+0.98560028*mean, 360)
	mr := rad(m)
	center := 1.9148*math.Sin(mr) + 0.02*math.Sin(2*mr) + 0.0003*math.Sin(3*mr)
	lambda := rad(math.Mod(m+center+180+102.9372, 360))
	transit := j2000JD + mean + 0.0053*math.Sin(mr) - 0.0069*math.Sin(2*lambda)
	if s.ev.sign == 0 {
		return transit, true
	}

	decl := math.Asin(math.Sin(lambda) * math.Sin(rad(obliquity)))
	lat := rad(s.Latitude)
	cosH := (math.Sin(rad(s.ev.horizon)) - math.Sin(lat)*math.Sin(decl)) / (math.Cos(lat) * math.Cos(decl))
	if cosH < -1 || cosH > 1 {
		return 0, false
	}
	return transit + s.ev.sign*math.Acos(cosH)/(2*math.Pi), true
}

// Remaining is the estimate used for solar schedules.
func (s Solar) Remaining(anchor, now time.Time) time.Duration {
	next, ok := s.Next(anchor)
	if !ok {
		return never
	}
	return next.Sub(now) + solarSlack
}

// never is the estimate of a schedule with no further run.
const never = time.Duration(math.MaxInt64 / 2)

func rad(deg float64) float64 { return deg * math.Pi / 180 }

func julian(t time.Time) float64 {
	return float64(t.UnixMilli())/86400000 + unixEpochJD
}

func fromJulian(jd float64) time.Time {
	ms := math.Round((jd - unixEpochJD) * 86400000)
	return time.UnixMilli(int64(ms)).UTC()
}
