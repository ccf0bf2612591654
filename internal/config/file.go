package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	yaml "go.yaml.in/yaml/v3"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

const (
	DefaultSMSEndpoint = "https://site2sms.p.mashape.com/index.php"
	DefaultSMTPHost    = "smtp.gmail.com"
	DefaultSMTPPort    = 587
)

// File is the on-disk configuration: watched entities and the
// credentials of each notification channel.
type File struct {
	Addr     string       `yaml:"addr"`
	Channels Channels     `yaml:"channels"`
	Entities []EntitySpec `yaml:"entities"`
}

// Channels groups per-channel settings. A nil channel is simply not
// configured.
type Channels struct {
	SMS   *SMSChannel   `yaml:"sms"`
	Email *EmailChannel `yaml:"email"`
	Log   *LogChannel   `yaml:"log"`
}

// Props is a bag of channel credentials (uid, pwd, auth-token, ...).
type Props map[string]string

// Missing returns the required keys that are absent or blank, in order.
func (p Props) Missing(required ...string) []string {
	var out []string
	for _, k := range required {
		if strings.TrimSpace(p[k]) == "" {
			out = append(out, k)
		}
	}
	return out
}

type SMSChannel struct {
	Endpoint string `yaml:"endpoint"`
	Props    Props  `yaml:"props"`
}

type EmailChannel struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Subject   string `yaml:"subject"`
	Signature string `yaml:"signature"`
	Props     Props  `yaml:"props"`
}

type LogChannel struct {
	Disabled bool `yaml:"disabled"`
}

type EntitySpec struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	Interval Interval      `yaml:"interval"`
	Contacts []ContactSpec `yaml:"contacts"`
}

// Interval accepts either a Go duration string ("30s") or a bare
// integer number of seconds.
type Interval time.Duration

func (i *Interval) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: interval must be a scalar", n.Line)
	}
	if secs, err := strconv.Atoi(n.Value); err == nil {
		*i = Interval(time.Duration(secs) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid interval %q: %w", n.Line, n.Value, err)
	}
	*i = Interval(d)
	return nil
}

// ContactSpec is either a plain identifier string or a mapping with
// id/subject/signature.
type ContactSpec domain.Contact

func (c *ContactSpec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		c.ID = n.Value
		return nil
	case yaml.MappingNode:
		var raw struct {
			ID        string `yaml:"id"`
			Subject   string `yaml:"subject"`
			Signature string `yaml:"signature"`
		}
		if err := n.Decode(&raw); err != nil {
			return err
		}
		*c = ContactSpec{ID: raw.ID, Subject: raw.Subject, Signature: raw.Signature}
		return nil
	default:
		return fmt.Errorf("line %d: contact must be a string or a mapping", n.Line)
	}
}

// Load reads, defaults and validates the config file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML (or JSON) config bytes.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	f.ApplyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) ApplyDefaults() {
	if sms := f.Channels.SMS; sms != nil && sms.Endpoint == "" {
		sms.Endpoint = DefaultSMSEndpoint
	}
	if em := f.Channels.Email; em != nil {
		if em.Host == "" {
			em.Host = DefaultSMTPHost
		}
		if em.Port == 0 {
			em.Port = DefaultSMTPPort
		}
	}
	if f.Channels.Log == nil {
		f.Channels.Log = &LogChannel{}
	}
}

var ErrNoEntities = errors.New("config: no entities configured")

// Validate reports every entity problem at once.
func (f *File) Validate() error {
	if len(f.Entities) == 0 {
		return ErrNoEntities
	}
	var errs error
	seen := make(map[string]bool, len(f.Entities))
	for i, e := range f.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("entity %d: name is required", i))
		} else if seen[name] {
			errs = multierr.Append(errs, fmt.Errorf("entity %q: duplicate name", name))
		}
		seen[name] = true

		if u, err := url.Parse(e.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("entity %q: url must be http(s) with a host: %q", name, e.URL))
		}
		if e.Interval <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("entity %q: interval must be positive", name))
		}
		for j, c := range e.Contacts {
			if strings.TrimSpace(c.ID) == "" {
				errs = multierr.Append(errs, fmt.Errorf("entity %q: contact %d has an empty id", name, j))
			}
		}
	}
	return errs
}

// DomainEntities converts the validated specs into domain entities.
func (f *File) DomainEntities() []domain.Entity {
	out := make([]domain.Entity, 0, len(f.Entities))
	for _, e := range f.Entities {
		contacts := make([]domain.Contact, 0, len(e.Contacts))
		for _, c := range e.Contacts {
			contacts = append(contacts, domain.Contact(c))
		}
		out = append(out, domain.Entity{
			Name:     strings.TrimSpace(e.Name),
			URL:      e.URL,
			Interval: time.Duration(e.Interval),
			Contacts: contacts,
		})
	}
	return out
}

// Names lists entity names sorted, for logs and preflight output.
func (f *File) Names() []string {
	out := make([]string, 0, len(f.Entities))
	for _, e := range f.Entities {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}
