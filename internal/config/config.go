// Package config declares routerd's startup configuration and the flag
// block that populates it.
package config

import "flag"

// Config is routerd's process-wide startup configuration.
type Config struct {
	ListenAddr  string
	AuditLogPath string
	AuditKeyPath string
	UseLinuxDriver bool
}

// Parse builds a Config from command-line flags.
func Parse() *Config {
	c := &Config{}
	flag.StringVar(&c.ListenAddr, "listen", "127.0.0.1:9090", "HTTP demo binder listen address")
	flag.StringVar(&c.AuditLogPath, "audit-log", "/var/lib/routerd/audit.jsonl", "Path to the audit log")
	flag.StringVar(&c.AuditKeyPath, "audit-key", "/var/lib/routerd/audit.key", "Path to the audit HMAC key")
	flag.BoolVar(&c.UseLinuxDriver, "linux-driver", false, "Use the netlink-backed Linux stand-in NIC driver instead of the in-memory fake")
	flag.Parse()
	return c
}
