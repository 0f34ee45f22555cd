/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

// Events receives play milestones. telemetry.Client implements it.
type Events interface {
	ScenarioStarted(scenario string)
	ChoiceMade(scenario string, index int)
	ScenarioEnded(scenario string)
	ScenarioRestarted(scenario string)
}

type noEvents struct{}

func (noEvents) ScenarioStarted(string)   {}
func (noEvents) ChoiceMade(string, int)   {}
func (noEvents) ScenarioEnded(string)     {}
func (noEvents) ScenarioRestarted(string) {}
