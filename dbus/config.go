package dbus

import (
	"time"

	"github.com/marmos91/godbus/internal/dbuscorrelate"
	"github.com/marmos91/godbus/internal/dbushealth"
	"github.com/marmos91/godbus/internal/dbussasl"
	"github.com/marmos91/godbus/pkg/metrics"
)

// BusSelector names which well-known bus to connect to when Address is
// left empty.
type BusSelector int

const (
	BusSystem BusSelector = iota
	BusSession
)

func (b BusSelector) String() string {
	if b == BusSession {
		return "session"
	}
	return "system"
}

// Config configures a Connection (§4.8, §9.2 for the CLI-facing layer
// this feeds).
type Config struct {
	// Address is an explicit D-Bus address string (semicolon-separated
	// attempts). When empty, Bus selects a well-known default.
	Address string
	Bus     BusSelector

	// Mechanisms overrides the SASL negotiation order; nil uses the
	// package default [EXTERNAL, DBUS_COOKIE_SHA1, ANONYMOUS].
	Mechanisms      []dbussasl.Mechanism
	NegotiateUnixFD bool

	CallTimeout     time.Duration
	HandlerPoolSize int

	Health dbushealth.Config

	// Metrics records call/reconnect/health-check counters. May be left
	// nil, in which case no metrics are collected.
	Metrics metrics.Registry
}

// DefaultConfig returns the connection defaults named throughout
// spec.md §4.6–§4.7.
func DefaultConfig() Config {
	return Config{
		Bus:             BusSystem,
		CallTimeout:     dbuscorrelate.DefaultTimeout,
		HandlerPoolSize: 16,
		Health:          dbushealth.DefaultConfig(),
		Metrics:         metrics.NoOp(),
	}
}

func (c Config) resolveAddresses() (string, error) {
	if c.Address != "" {
		return c.Address, nil
	}
	switch c.Bus {
	case BusSession:
		addr, ok := SessionBusAddress()
		if !ok {
			return "", errNoSessionBusAddress
		}
		return addr, nil
	default:
		return SystemBusAddress(), nil
	}
}
