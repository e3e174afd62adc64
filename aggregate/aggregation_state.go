//
// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package aggregate

type aggregationState int

const (
	defaultState aggregationState = iota
	merged
	serialized
	resultReturned
)

var stateErrorMessage = map[aggregationState]string{
	defaultState:   "",
	merged:         "Counter has already been merged into another Counter",
	serialized:     "Counter has already been serialized",
	resultReturned: "Counts were already computed and returned",
}

var stateName = map[aggregationState]string{
	defaultState:   "Default",
	merged:         "Merged",
	serialized:     "Serialized",
	resultReturned: "ResultReturned",
}

func (s aggregationState) errorMessage() string {
	return stateErrorMessage[s]
}

func (s aggregationState) String() string {
	return stateName[s]
}
