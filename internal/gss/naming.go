package gss

import (
	"regexp"
	"strings"
	"time"
)

const (
	screenshotTimeLayout = "2006.01.02 15.04.05.000"
	screenshotZoneLayout = "-0700"
	sessionTimeLayout    = "2006-01-02 15_04"
)

var (
	screenshotNameRe = regexp.MustCompile(`^(.+?) (\d{4}\.\d{2}\.\d{2} \d{2}\.\d{2}\.\d{2}\.\d{3}) ([+-]\d{4}) (manual|auto)(.+)$`)
	sessionNameRe    = regexp.MustCompile(`^(.+?) (\d{4}-\d{2}-\d{2}) (\d{2})_(\d{2})$`)
)

// ScreenshotName is the parsed form of a staged screenshot filename.
type ScreenshotName struct {
	Title  string
	Time   time.Time
	Manual bool
	Suffix string
}

// ScreenshotFilename builds "{title} {YYYY.MM.DD HH.MM.SS.mmm} {±HHMM} {manual|auto}{suffix}".
// The timestamp and offset are rendered in ts's own location.
func ScreenshotFilename(title, suffix string, ts time.Time, manual bool) string {
	flag := "auto"
	if manual {
		flag = "manual"
	}
	return title + " " + ts.Format(screenshotTimeLayout) + " " + ts.Format(screenshotZoneLayout) + " " + flag + suffix
}

// ParseScreenshotFilename reverses ScreenshotFilename. The returned time is
// converted to loc. ok is false when the name does not match the format.
func ParseScreenshotFilename(name string, loc *time.Location) (ScreenshotName, bool) {
	m := screenshotNameRe.FindStringSubmatch(name)
	if m == nil {
		return ScreenshotName{}, false
	}
	ts, err := time.Parse(screenshotTimeLayout+" "+screenshotZoneLayout, m[2]+" "+m[3])
	if err != nil {
		return ScreenshotName{}, false
	}
	if loc != nil {
		ts = ts.In(loc)
	}
	return ScreenshotName{
		Title:  m[1],
		Time:   ts,
		Manual: m[4] == "manual",
		Suffix: m[5],
	}, true
}

// SessionFolderName formats a session start as "YYYY-MM-DD HH_MM" in loc.
func SessionFolderName(start time.Time, loc *time.Location) string {
	return start.In(loc).Format(sessionTimeLayout)
}

// SessionName is the canonical "{title} {YYYY-MM-DD HH_MM}" name shared by the
// record and its folder.
func SessionName(title string, start time.Time, loc *time.Location) string {
	return title + " " + SessionFolderName(start, loc)
}

// ParseSessionName reverses SessionName, interpreting the wall time in loc.
func ParseSessionName(name string, loc *time.Location) (string, time.Time, bool) {
	m := sessionNameRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return "", time.Time{}, false
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", m[2]+" "+m[3]+":"+m[4], loc)
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], start, true
}
