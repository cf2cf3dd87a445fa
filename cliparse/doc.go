// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - JWTSecret: Secret for signing identity tokens (required)
  - EmailDomain: Domain sign-in emails must use (default: metalab.com)
  - TokenTTL: Identity token lifetime (default: 720h)
  - RedisURL: Enables the cross-instance event relay (optional)
  - LogLevel: slog level (default: info)

# CLI Flags

	-p             Server port
	-d             Database URL
	-t             Database type
	--jwt-secret   Token signing secret
	--email-domain Allowed email domain
	--token-ttl    Token lifetime
	--redis-url    Redis URL
	--log-level    Log level

# Environment Variables

Flags fall back to environment variables:

	PORT                 → -p
	DATABASE_URL         → -d
	DATABASE_TYPE        → -t
	JWT_SECRET           → --jwt-secret
	ALLOWED_EMAIL_DOMAIN → --email-domain
	TOKEN_TTL            → --token-ttl
	REDIS_URL            → --redis-url
	LOG_LEVEL            → --log-level

CLI flags take precedence over environment variables. main loads a .env
file (if present) before parsing, so its values act as environment.

# Validation

ParseFlags returns an error if:

  - DATABASE_URL is missing
  - JWT_SECRET is missing
  - DATABASE_TYPE is not sqlite or postgres
  - TOKEN_TTL or LOG_LEVEL cannot be parsed
*/
package cliparse
