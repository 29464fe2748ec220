package fetch

import (
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset" // decode non-UTF-8 encoded words in From
	"github.com/emersion/go-message/mail"

	"github.com/joshsymonds/gmail-checker/internal/gmail"
)

const (
	UnknownSender = "Unknown Sender"
	NoSubject     = "No Subject"
	UnknownDate   = "Unknown Date"

	DateLayout = "2006-01-02 15:04"
)

// Detail is the display record for one message.
type Detail struct {
	ID      gmail.MessageID
	Sender  string
	Subject string
	Date    string
}

// ParseDetail extracts sender, subject and date from msg, falling back to
// the sentinel values when a header is missing or cannot be parsed.
func ParseDetail(msg gmail.Message, loc *time.Location) Detail {
	if loc == nil {
		loc = time.Local
	}
	d := Detail{ID: msg.ID, Sender: UnknownSender, Subject: NoSubject, Date: UnknownDate}
	if v, ok := headerValue(msg.Headers, "Subject"); ok {
		d.Subject = v
	}
	if v, ok := headerValue(msg.Headers, "From"); ok {
		d.Sender = senderOf(v)
	}
	if v, ok := headerValue(msg.Headers, "Date"); ok {
		d.Date = formatDate(v, loc)
	}
	return d
}

// headerValue matches name exactly; the first occurrence wins.
func headerValue(headers []gmail.Header, name string) (string, bool) {
	for _, h := range headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// senderOf picks the display name of the first mailbox, then its address.
// Headers that do not parse fall back to a loose "Name <addr" split and
// finally to the raw value.
func senderOf(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return UnknownSender
	}
	addrs, err := mail.ParseAddressList(from)
	if err != nil || len(addrs) == 0 {
		return looseSender(from)
	}
	if name := strings.TrimSpace(addrs[0].Name); name != "" {
		return name
	}
	if addrs[0].Address != "" {
		return addrs[0].Address
	}
	return UnknownSender
}

func looseSender(from string) string {
	if i := strings.Index(from, "<"); i >= 0 {
		if name := strings.Trim(from[:i], " \t\"'"); name != "" {
			return name
		}
		if addr := strings.Trim(from[i+1:], " \t<>"); addr != "" {
			return addr
		}
	}
	return from
}

// obsoleteZones are the RFC 5322 section 4.3 zone names net/mail reads as UTC.
var obsoleteZones = map[string]string{
	"EST": "-0500", "EDT": "-0400",
	"CST": "-0600", "CDT": "-0500",
	"MST": "-0700", "MDT": "-0600",
	"PST": "-0800", "PDT": "-0700",
}

func formatDate(raw string, loc *time.Location) string {
	fields := strings.Fields(raw)
	if n := len(fields); n > 0 {
		if off, ok := obsoleteZones[strings.ToUpper(fields[n-1])]; ok {
			fields[n-1] = off
		}
	}
	var h mail.Header
	h.Set("Date", strings.Join(fields, " "))
	t, err := h.Date()
	if err != nil || t.IsZero() {
		return UnknownDate
	}
	return t.In(loc).Format(DateLayout)
}
