// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package auth implements the credential and session-resolution core of
// Keyfold: input validation, password hashing, token issuance and
// verification, the read-through user cache, and the signup/login flows
// that orchestrate them.
package auth
