package notify

import "regexp"

// ChannelKind names a notification delivery mechanism.
type ChannelKind string

const (
	ChannelPhone ChannelKind = "phone"
	ChannelEmail ChannelKind = "email"
	ChannelLog   ChannelKind = "log"
)

func (k ChannelKind) String() string { return string(k) }

type rule struct {
	kind  ChannelKind
	match func(id string) bool
}

var (
	phoneRe = regexp.MustCompile(`^[0-9]{10}$`)
	emailRe = regexp.MustCompile(`^[A-Za-z0-9 ._-]{3,}@[a-z0-9-]+\.[a-z]{2,4}$`)
)

// rules is evaluated in order, first match wins. The log rule matches
// everything and must stay last.
var rules = []rule{
	{kind: ChannelPhone, match: phoneRe.MatchString},
	{kind: ChannelEmail, match: emailRe.MatchString},
	{kind: ChannelLog, match: func(string) bool { return true }},
}

// Classify maps a contact identifier to the channel that should carry
// its notifications. It is total: unrecognised shapes go to the log.
func Classify(id string) ChannelKind {
	for _, r := range rules {
		if r.match(id) {
			return r.kind
		}
	}
	return ChannelLog
}
