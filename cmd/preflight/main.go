// cmd/preflight/main.go
package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/hamed0406/pgkeepalive/internal/config"
	"github.com/hamed0406/pgkeepalive/internal/probe"
)

// preflight validates configuration and lists the databases a cycle would
// probe, without connecting to any of them.
func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail("config: " + err.Error())
	}
	ok("ADDR=" + cfg.Addr)

	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL=0; only POST /run-checks will run cycles.")
	} else {
		ok("CHECK_INTERVAL=" + cfg.CheckInterval.String())
	}
	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK_URL empty; failures will only be logged.")
	}
	if len(cfg.RunAPIKeys) == 0 {
		warn("RUN_API_KEYS empty; POST /run-checks is open to anyone who can reach ADDR.")
	}

	env, err := config.LoadEnvironment(os.Environ(), cfg.BindingsFile)
	if err != nil {
		fail(err.Error())
	}
	s := probe.ResolveSettings(env)
	ok(fmt.Sprintf("retries=%d delay=%dms (%d attempts per database)", s.MaxRetries, s.RetryDelayMS, s.Attempts()))

	targets := probe.Discover(env)
	if len(targets) == 0 {
		fail(probe.ErrNoTargets.Error())
	}
	for _, t := range targets {
		ok(fmt.Sprintf("%s host=%s tls=%s", t.Name, hostOf(t.ConnectionString), probe.TLSPolicyFor(t.ConnectionString)))
	}
	ok("preflight passed")
}

// hostOf keeps credentials out of the output.
func hostOf(cs string) string {
	u, err := url.Parse(cs)
	if err != nil || u.Host == "" {
		return "?"
	}
	return u.Host
}
