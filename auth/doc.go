// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity tokens, sign-in validation and ID generation.

# Sign-in Validation

Only company addresses may sign in:

	email := auth.NormalizeEmail(req.Email)
	err := auth.ValidateSignIn(email, req.Name, "metalab.com")

Returns ErrEmailRequired, ErrInvalidEmailDomain or ErrNameRequired.

# Bearer Tokens

Tokens are HS256 JWTs carrying the user ID, email and display name:

	token, err := auth.IssueToken(user.ID, user.Email, user.Name, secret, 30*24*time.Hour)
	claims, err := auth.ParseToken(token, secret)

The token replaces browser-local storage of the signed-in user. Every
request names its caller explicitly through it.

# ID Generation

Random UUIDs for database records:

	id := auth.NewID()
*/
package auth
