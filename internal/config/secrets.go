/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// Keychain entry holding the Postgres connection string.
const (
	keyringService = "ChatQuest"
	keyringDSN     = "database_url"
)

// SecretStore abstracts the OS keychain so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secrets SecretStore = osKeyring{}

// DatabaseURL returns the Postgres DSN: CQ_DATABASE_URL or the config file first,
// then the OS keychain. Keychain failures are treated as "not set".
func DatabaseURL(cfg AppConfig) string {
	if s := strings.TrimSpace(cfg.Storage.DSN); s != "" {
		return s
	}
	v, err := secrets.Get(keyringService, keyringDSN)
	if err != nil {
		return ""
	}
	return v
}

// SaveDatabaseURL stores dsn in the OS keychain; an empty dsn removes the entry.
func SaveDatabaseURL(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		err := secrets.Delete(keyringService, keyringDSN)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return secrets.Set(keyringService, keyringDSN, dsn)
}
