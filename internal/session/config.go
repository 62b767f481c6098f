// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package session owns the authenticated connection to the query
// engine: channel construction (plain or TLS), the authenticate RPC,
// and serialized credential rotation.
package session

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// TLSMode selects how the channel authenticates the server.
type TLSMode int

const (
	TLSNone TLSMode = iota
	TLSSystemCA
	TLSCustomCA
)

// Config is the fixed menu of channel options. Every field has a
// recognized effect; unrecognized combinations are rejected by
// Preflight rather than silently ignored. The HTTP/2 ping policy is
// the three keepalive fields below (KeepaliveIdle,
// KeepalivePingInterval, PermitKeepaliveWithoutCalls): they are the
// entirety of what grpc-go's client-side keepalive.ClientParameters
// exposes. A server-enforced ping-flood policy (max pings tolerated
// without data, minimum time between pings) is a keepalive.
// EnforcementPolicy, a ServerOption with no client-dial counterpart —
// this package dials a channel, it never accepts one, so there is
// nothing on the client side for such a policy to configure.
type Config struct {
	Endpoint string
	User     string
	Token    string

	TLSMode    TLSMode
	CAPEM      []byte
	CAPath     string
	ServerName string

	KeepaliveIdle               time.Duration
	KeepalivePingInterval       time.Duration
	PermitKeepaliveWithoutCalls bool

	MaxInboundMessageBytes  int
	MaxOutboundMessageBytes int

	PrepareTimeout time.Duration
}

const (
	defaultMaxInboundMessageBytes  = 100 << 20
	defaultMaxOutboundMessageBytes = 300 << 20
	defaultKeepaliveIdle           = 5 * time.Minute
	defaultKeepalivePingInterval   = 30 * time.Second
	defaultPrepareTimeout          = 5 * time.Minute
)

// Bind registers the config's flags on a pflag.FlagSet, matching the
// teacher's Bind/Preflight convention for user-facing configuration.
func (c *Config) Bind(f *pflag.FlagSet) {
	f.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "engine host:port")
	f.StringVar(&c.User, "user", c.User, "authentication user")
	f.DurationVar(&c.KeepaliveIdle, "keepalive-idle", defaultKeepaliveIdle, "channel keepalive idle timeout")
	f.DurationVar(&c.KeepalivePingInterval, "keepalive-ping-interval", defaultKeepalivePingInterval, "channel keepalive ping interval")
	f.BoolVar(&c.PermitKeepaliveWithoutCalls, "keepalive-permit-without-calls", false, "send keepalive pings even with no active calls")
	f.IntVar(&c.MaxInboundMessageBytes, "max-inbound-message-bytes", defaultMaxInboundMessageBytes, "max inbound gRPC message size")
	f.IntVar(&c.MaxOutboundMessageBytes, "max-outbound-message-bytes", defaultMaxOutboundMessageBytes, "max outbound gRPC message size")
	f.DurationVar(&c.PrepareTimeout, "prepare-timeout", defaultPrepareTimeout, "upper bound on prepare RPC duration")
	f.StringVar(&c.CAPath, "tls-ca-path", "", "path to a PEM-encoded CA certificate; enables custom-CA TLS")
	f.StringVar(&c.ServerName, "tls-server-name", "", "override TLS server name for SNI verification")
}

// Preflight validates and fills defaults, matching the teacher's
// Preflight convention of catching configuration errors before they
// reach a running system.
func (c *Config) Preflight() error {
	if c.Endpoint == "" {
		return errors.New("session: Endpoint must be set")
	}
	if c.MaxInboundMessageBytes <= 0 {
		c.MaxInboundMessageBytes = defaultMaxInboundMessageBytes
	}
	if c.MaxOutboundMessageBytes <= 0 {
		c.MaxOutboundMessageBytes = defaultMaxOutboundMessageBytes
	}
	if c.KeepaliveIdle <= 0 {
		c.KeepaliveIdle = defaultKeepaliveIdle
	}
	if c.KeepalivePingInterval <= 0 {
		c.KeepalivePingInterval = defaultKeepalivePingInterval
	}
	if c.PrepareTimeout <= 0 {
		c.PrepareTimeout = defaultPrepareTimeout
	}
	if len(c.CAPEM) > 0 || c.CAPath != "" {
		c.TLSMode = TLSCustomCA
	} else if c.TLSMode == TLSNone && c.ServerName != "" {
		// A server-name override with no CA material implies the caller
		// wants system-CA verification under a different SNI name.
		c.TLSMode = TLSSystemCA
	}
	return nil
}
