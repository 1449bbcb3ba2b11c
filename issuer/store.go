/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package issuer

import (
	"context"
)

// Store persists pre-authorized code records.
//
// Get and Consume return (nil, nil) for codes that are unknown, expired or already
// redeemed, so callers cannot distinguish those cases (no oracle for guessing clients).
// Consume atomically returns and deletes the record: of N concurrent calls for the
// same code, exactly one receives the record.
type Store interface {
	// Save stores the record under its code.
	Save(ctx context.Context, record PreAuthorizedCodeRecord) error
	// Get returns the record for the given code without consuming it.
	Get(ctx context.Context, code string) (*PreAuthorizedCodeRecord, error)
	// Consume atomically returns and deletes the record for the given code.
	Consume(ctx context.Context, code string) (*PreAuthorizedCodeRecord, error)
	// Close releases the store's resources.
	Close()
}
