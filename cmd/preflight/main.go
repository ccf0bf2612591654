// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hamed0406/uptimenotifier/internal/config"
	apimw "github.com/hamed0406/uptimenotifier/internal/httpapi/middleware"
	"github.com/hamed0406/uptimenotifier/internal/notify"
)

func main() {
	hashKey := flag.String("hash-key", "", "print the bcrypt hash of a status API key and exit")
	path := flag.String("config", "", "config file (defaults to CONFIG_PATH or config.yaml)")
	flag.Parse()

	if *hashKey != "" {
		h, err := apimw.HashKey(*hashKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, "✖", err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *path != "" {
		cfg.ConfigPath = *path
	}
	if !preflight(cfg, os.Stdout, os.Stderr) {
		os.Exit(1)
	}
}

// preflight prints one line per check and reports whether the daemon
// would start cleanly.
func preflight(cfg config.Config, stdout, stderr io.Writer) bool {
	passed := true
	fail := func(msg string) {
		fmt.Fprintln(stderr, "✖", msg)
		passed = false
	}
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	file, err := config.Load(cfg.ConfigPath)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
		return false
	}
	ok(fmt.Sprintf("%s: %d entities (%s)", cfg.ConfigPath, len(file.Entities), strings.Join(file.Names(), ", ")))
	ok("listen address " + cfg.ListenAddr(file))

	router, err := notify.NewRouter(zap.NewNop(), file.Channels)
	if err != nil {
		fail(err.Error())
		return false
	}
	ok("channels registered: " + strings.Join(router.Registered(), ", "))

	disabled := router.Disabled()
	kinds := make([]string, 0, len(disabled))
	for k := range disabled {
		kinds = append(kinds, k.String())
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fail(fmt.Sprintf("channel %s disabled: %v", k, disabled[notify.ChannelKind(k)]))
	}

	registered := make(map[string]bool)
	for _, k := range router.Registered() {
		registered[k] = true
	}
	for _, e := range file.DomainEntities() {
		if len(e.Contacts) == 0 {
			warn(fmt.Sprintf("entity %q has no contacts; transitions will only be logged", e.Name))
		}
		for _, c := range e.Contacts {
			if kind := notify.Classify(c.ID).String(); !registered[kind] {
				fail(fmt.Sprintf("entity %q contact %q needs channel %s, which is not registered", e.Name, c.ID, kind))
			}
		}
	}

	if len(cfg.StatusKeyHashes) == 0 {
		warn("STATUS_API_KEY_HASHES empty; status API is open to anyone who can reach it.")
	}
	for i, h := range cfg.StatusKeyHashes {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			fail(fmt.Sprintf("STATUS_API_KEY_HASHES entry %d is not a bcrypt hash: %v", i, err))
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may call the status API from a browser.")
	}
	if _, err := apimw.ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		for _, e := range multierr.Errors(err) {
			fail("TRUSTED_PROXIES: " + e.Error())
		}
	}

	if passed {
		ok("preflight passed")
	}
	return passed
}
