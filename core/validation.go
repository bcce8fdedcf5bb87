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

import "fmt"

// ValidatePayload validates a LogPayload according to domain rules.
//
// Validation rules:
//   - Service, Level and Message must not be empty
//
// NOT validated:
//   - Timestamp (zero means "assign at persist time")
//   - Metadata (treated as an opaque blob, no schema)
func ValidatePayload(payload *LogPayload) error {
	if payload == nil {
		return fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	if payload.Service == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, ErrEmptyService)
	}
	if payload.Level == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, ErrEmptyLevel)
	}
	if payload.Message == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, ErrEmptyMessage)
	}
	return nil
}
