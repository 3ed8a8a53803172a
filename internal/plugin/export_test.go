// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stockroom Contributors

package plugin

// ResetRegistrationTables exposes the registration-table reset to
// external test packages.
func ResetRegistrationTables() { resetRegistrationTables() }
