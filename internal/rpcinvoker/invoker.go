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

// Package rpcinvoker wraps every outbound call to the query engine with
// deployment-tag metadata, classifies the two distinguished error
// conditions the engine surfaces, and drives retry, re-authentication,
// and strategy rediscovery around them.
package rpcinvoker

import (
	"context"
	"strings"
	"time"

	"github.com/e6data/e6data-go-client/internal/strategy"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Defaults for the bounded retry budget, overridable via Config.
const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 200 * time.Millisecond
)

// Authenticator re-establishes the session(s) a retried call will use.
// Reauthenticate reports only whether that succeeded; the deployment
// tag is rediscovered separately, by the Coordinator.
type Authenticator interface {
	Reauthenticate(ctx context.Context) error
}

// Config configures an Invoker's retry budget.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	PlannerIP   string
	ClusterUUID string
}

// Invoker is the single choke point every outbound call passes
// through.
type Invoker struct {
	coord   *strategy.Coordinator
	auth    Authenticator
	cfg     Config
	backoff func(time.Duration)
}

// New constructs an Invoker bound to coord and auth. A zero Config
// falls back to DefaultMaxAttempts/DefaultBackoff.
func New(coord *strategy.Coordinator, auth Authenticator, cfg Config) *Invoker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Invoker{
		coord:   coord,
		auth:    auth,
		cfg:     cfg,
		backoff: func(d time.Duration) { time.Sleep(d) },
	}
}

// Headers is the metadata attached to every outbound call.
type Headers struct {
	Strategy    string
	PlannerIP   string
	ClusterUUID string
}

// headersForNewQuery resolves the strategy tag for a not-yet-prepared
// query, discovering it if needed.
func (v *Invoker) headersForNewQuery(ctx context.Context) (Headers, error) {
	tag, err := v.coord.TagForNewQuery(ctx)
	if err != nil {
		return Headers{}, err
	}
	return v.headers(tag), nil
}

// headersForQuery resolves the strategy tag for an already-prepared
// query via its registered tag.
func (v *Invoker) headersForQuery(queryID strategy.QueryID) Headers {
	return v.headers(v.coord.TagForExistingQuery(queryID))
}

func (v *Invoker) headers(tag strategy.Tag) Headers {
	h := Headers{PlannerIP: v.cfg.PlannerIP, ClusterUUID: v.cfg.ClusterUUID}
	if s := tag.String(); s != "" {
		h.Strategy = s
	} else if tag != strategy.Unset {
		log.WithField("tag", tag).Warn("rpcinvoker: refusing to send invalid strategy tag")
	}
	return h
}

// Call is the generic entry point: it attaches headers, invokes fn,
// classifies the result, retries on auth-denied/wrong-tag, and feeds
// any response hint back to the coordinator. queryID may be empty for
// calls that precede query preparation (e.g. authenticate), in which
// case the tag is (re)discovered rather than looked up.
//
// fn receives the resolved Headers and must perform exactly one RPC
// attempt, returning the decoded response (so Call can extract its
// hint) or an error.
func (v *Invoker) Call(ctx context.Context, queryID strategy.QueryID, fn func(context.Context, Headers) (ResponseHint, error)) (ResponseHint, error) {
	var lastErr error
	for attempt := 1; attempt <= v.cfg.MaxAttempts; attempt++ {
		var hdrs Headers
		var err error
		if queryID == "" {
			hdrs, err = v.headersForNewQuery(ctx)
		} else {
			hdrs = v.headersForQuery(queryID)
		}
		if err != nil {
			return nil, err
		}

		resp, callErr := fn(ctx, hdrs)
		if resp != nil {
			if hint, ok := ParseHint(resp.GetNextStrategy()); ok {
				v.coord.ObserveResponseHint(hint)
			}
		}
		if callErr == nil {
			return resp, nil
		}

		switch classify(callErr) {
		case classAuthDenied:
			lastErr = callErr
			if reauthErr := v.auth.Reauthenticate(ctx); reauthErr != nil {
				return nil, reauthErr
			}
			v.backoff(v.cfg.Backoff)
			continue
		case classWrongTag:
			lastErr = callErr
			v.coord.Invalidate()
			if reauthErr := v.auth.Reauthenticate(ctx); reauthErr != nil {
				return nil, reauthErr
			}
			v.backoff(v.cfg.Backoff)
			continue
		default:
			return nil, callErr
		}
	}
	return nil, errors.Wrap(lastErr, "rpcinvoker: exhausted retry attempts")
}

// ResponseHint is implemented by every enginepb response message.
type ResponseHint interface {
	GetNextStrategy() string
}

// ParseHint normalizes a response's next-strategy field.
func ParseHint(raw string) (strategy.Tag, bool) {
	if raw == "" {
		return strategy.Unset, false
	}
	return strategy.ParseTag(raw)
}

// IsWrongTag reports whether err is the engine's distinguished
// wrong-deployment-tag error (details embedding "456" or "status:
// 456", per spec.md §6). Exposed for strategy discovery, which needs
// the same classification outside of Call's own retry loop.
func IsWrongTag(err error) bool { return classify(err) == classWrongTag }

// IsAuthDenied reports whether err is the engine's distinguished
// auth-denied error.
func IsAuthDenied(err error) bool { return classify(err) == classAuthDenied }

type errorClass int

const (
	classOther errorClass = iota
	classAuthDenied
	classWrongTag
)

func classify(err error) errorClass {
	st, ok := status.FromError(err)
	if !ok {
		return classOther
	}
	if st.Code() == codes.Unauthenticated || strings.Contains(st.Message(), "Access denied") {
		return classAuthDenied
	}
	if containsWrongTagMarker(st.Message()) {
		return classWrongTag
	}
	for _, detail := range st.Details() {
		if s, ok := detail.(fmtStringer); ok && containsWrongTagMarker(s.String()) {
			return classWrongTag
		}
	}
	return classOther
}

type fmtStringer interface {
	String() string
}

func containsWrongTagMarker(s string) bool {
	return strings.Contains(s, "status: 456") || strings.Contains(s, "456")
}
