package campaign

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Status mirrors the spreadsheet's status column.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

// Campaign is one scheduled outbound blast, loaded from a source row.
//
// Date is always the canonical ISO calendar date ("2006-01-02") regardless of
// the format the source row used. TimeMinutes is the optional time-of-day in
// minutes since midnight; -1 means "any time that day".
type Campaign struct {
	ID           string
	Row          int // 1-based source row, used for status write-back
	Date         string
	TimeMinutes  int
	Text         string
	ImageID      string
	ImageCaption string
	VideoID      string
	Status       Status
}

// HasTime reports whether the campaign is pinned to a time of day.
func (c Campaign) HasTime() bool { return c.TimeMinutes >= 0 }

// DueOn reports whether the campaign should run at the given local time:
// same calendar date, and (if a time is set) at or after the scheduled
// minute. Matching "at or after" instead of exact-minute equality means a
// missed tick cannot strand a time-pinned campaign for the rest of the day.
func (c Campaign) DueOn(now time.Time) bool {
	if c.Status == StatusSent {
		return false
	}
	if c.Date != now.Format("2006-01-02") {
		return false
	}
	if !c.HasTime() {
		return true
	}
	return now.Hour()*60+now.Minute() >= c.TimeMinutes
}

// DeriveID builds a stable identifier from the campaign content and date.
// The same row reloaded yields the same id; a new scheduled date yields a
// new id, so a recurring campaign is a fresh instance each day. Media
// references are part of the content: two media-only rows with different
// attachments are distinct campaigns.
func DeriveID(text, imageID, videoID, isoDate string) string {
	h := fnv.New32a()
	for _, part := range []string{text, imageID, videoID} {
		_, _ = h.Write([]byte(strings.TrimSpace(part)))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("c:%08x:%s", h.Sum32(), isoDate)
}

var dmyRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// ParseDate normalizes a source date cell to ISO form.
// Accepted inputs: "2006-01-02" and "02/01/2006" (day first).
// Returns "" for anything unparseable or not a real calendar date.
func ParseDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if m := dmyRe.FindStringSubmatch(s); m != nil {
		s = m[3] + "-" + pad2(m[2]) + "-" + pad2(m[1])
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return ""
	}
	// time.Parse normalizes out-of-range components (2024-13-40 becomes a
	// valid later date); require the round-trip to match.
	if t.Format("2006-01-02") != s {
		return ""
	}
	return s
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ParseTimeOfDay parses an optional "HH:MM" cell into minutes since
// midnight. Returns -1 for empty or invalid values; an unparseable time
// degrades to "any time today" rather than dropping the campaign.
func ParseTimeOfDay(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return -1
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return -1
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return -1
	}
	return h*60 + m
}

const namePlaceholder = "${recipientName}"

// Personalize substitutes the recipient-name placeholder in a template.
// A blank contact name falls back to the configured default label.
func Personalize(template, name, fallback string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		n = fallback
	}
	return strings.ReplaceAll(template, namePlaceholder, n)
}
