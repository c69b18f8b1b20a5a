package pipeline

import (
	"fmt"
	"regexp"
	"strconv"

	"weighocr/internal"
	"weighocr/internal/util"
)

var (
	datePattern      = regexp.MustCompile(`(\d{4})[-./\s]*(\d{2})[-./\s]*(\d{2})`)
	serialTail       = regexp.MustCompile(`[-\s:]*([0-9]{1,6})`)
	serialDigits     = regexp.MustCompile(`\d{1,8}`)
	timePattern      = regexp.MustCompile(`(\d{1,2})\s*:\s*(\d{2})(?:\s*:\s*(\d{2}))?`)
	timeParenPattern = regexp.MustCompile(`\(?\s*(\d{1,2})\s*:\s*(\d{2})\s*\)?`)
	timeKorean       = regexp.MustCompile(`(\d{1,2})\s*시\s*(\d{1,2})\s*분`)
	timestampPattern = regexp.MustCompile(`(\d{4})\s*-\s*(\d{2})\s*-\s*(\d{2})\s+(\d{2})\s*:\s*(\d{2})\s*:\s*(\d{2})`)
	gpsPattern       = regexp.MustCompile(`([-+]?\d+\.\d+)\s*,\s*([-+]?\d+\.\d+)`)
)

// ExtractDateSerial reads a YYYY-MM-DD date and, when digits follow it on the same
// line, the serial number printed next to it.
func ExtractDateSerial(text string) (date *string, serial *string) {
	loc := datePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, nil
	}
	date = util.StringPtr(text[loc[2]:loc[3]] + "-" + text[loc[4]:loc[5]] + "-" + text[loc[6]:loc[7]])
	if m := serialTail.FindStringSubmatch(text[loc[1]:]); m != nil {
		serial = util.StringPtr(m[1])
	}
	return date, serial
}

func ExtractTime(text string) *string {
	if m := timePattern.FindStringSubmatch(text); m != nil {
		if m[3] != "" {
			return util.StringPtr(fmt.Sprintf("%02d:%02d:%02d", atoi(m[1]), atoi(m[2]), atoi(m[3])))
		}
		return util.StringPtr(fmt.Sprintf("%02d:%02d", atoi(m[1]), atoi(m[2])))
	}
	if m := timeParenPattern.FindStringSubmatch(text); m != nil {
		return util.StringPtr(fmt.Sprintf("%02d:%02d", atoi(m[1]), atoi(m[2])))
	}
	if m := timeKorean.FindStringSubmatch(text); m != nil {
		return util.StringPtr(fmt.Sprintf("%02d:%02d", atoi(m[1]), atoi(m[2])))
	}
	return nil
}

func ExtractWeight(text string) *float64 {
	return util.ParseWeight(util.StripTimeTokens(text)).Kg
}

func ExtractAllWeights(text string) []float64 {
	return util.ParseAllWeights(util.StripTimeTokens(text))
}

func ExtractSerial(text string) *string {
	if m := serialDigits.FindString(text); m != "" {
		return util.StringPtr(m)
	}
	return nil
}

func ExtractGPS(text string) *internal.GPS {
	m := gpsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &internal.GPS{Lat: lat, Lng: lng}
}

func ExtractTimestamp(text string) *string {
	m := timestampPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return util.StringPtr(fmt.Sprintf("%s-%s-%s %s:%s:%s", m[1], m[2], m[3], m[4], m[5], m[6]))
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
