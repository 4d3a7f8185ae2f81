// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements the authentication and credential-recovery
// core of Gatehouse.
//
// # Domain Types
//
// Domain types (User, Session, PasswordReset) should be created using
// their respective constructors:
//   - NewUser - creates a User with validated username, email, and password hash
//   - NewSession - creates a Session with validated user and expiry
//   - NewPasswordReset - creates a PasswordReset with validated user and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - AuthService - login, registration, logout, session validation
//   - PasswordResetService - reset-token issue, redemption, password reset
//
// Services are created with New*Service constructors that validate their
// dependencies. Both services return only the error sentinels declared in
// errors.go to their callers; storage failures are wrapped with oops codes
// and never leak driver detail past the flow boundary.
package auth
