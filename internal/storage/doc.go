/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the persistence collaborator: scenario sources and their
// ordered metadata list, saved progress, source revisions, the current-scenario pointer and
// user settings.
// The default backend is an embedded SQLite database (WAL, meta/version tables, migrations);
// the same schema can be served from Postgres through the pgx stdlib driver.
package storage
