package domain

import "time"

// Status is the believed liveness of a watched entity.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

func (s Status) String() string { return string(s) }

// StatusFromBool maps a pass/fail outcome onto UP/DOWN.
func StatusFromBool(up bool) Status {
	if up {
		return StatusUp
	}
	return StatusDown
}

// Contact is an opaque identifier (phone number, email address, anything
// else) plus the entity-scoped formatting metadata some channels need.
type Contact struct {
	ID        string `json:"id"`
	Subject   string `json:"subject,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Entity is a watched target. Built from configuration at startup and
// never mutated afterwards.
type Entity struct {
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Interval time.Duration `json:"interval"`
	Contacts []Contact     `json:"contacts"`
}

// Transition records one detected UP/DOWN change and how its
// notification pass went.
type Transition struct {
	Entity    string    `json:"entity"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	At        time.Time `json:"at"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
}
