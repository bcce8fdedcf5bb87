// Copyright 2025 Poiesic Systems
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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidPayload indicates a LogPayload failed validation.
	ErrInvalidPayload = errors.New("invalid log payload")

	// ErrEmptyMessage indicates the Message field is empty.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrEmptyService indicates the Service field is empty.
	ErrEmptyService = errors.New("service cannot be empty")

	// ErrEmptyLevel indicates the Level field is empty.
	ErrEmptyLevel = errors.New("level cannot be empty")
)
