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

package session

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// buildCredentials constructs transport credentials per cfg.TLSMode.
func buildCredentials(cfg *Config) (credentials.TransportCredentials, error) {
	switch cfg.TLSMode {
	case TLSNone:
		return insecure.NewCredentials(), nil
	case TLSSystemCA:
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.ServerName != "" {
			tlsCfg.ServerName = cfg.ServerName
		}
		return credentials.NewTLS(tlsCfg), nil
	case TLSCustomCA:
		pem := cfg.CAPEM
		if len(pem) == 0 {
			b, err := os.ReadFile(cfg.CAPath)
			if err != nil {
				return nil, errors.Wrapf(err, "session: read CA cert %s", cfg.CAPath)
			}
			pem = b
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("session: no certificates found in CA PEM")
		}
		tlsCfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
		if cfg.ServerName != "" {
			tlsCfg.ServerName = cfg.ServerName
		}
		return credentials.NewTLS(tlsCfg), nil
	default:
		return nil, errors.Errorf("session: unrecognized TLSMode %d", cfg.TLSMode)
	}
}
