package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS forms (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT,
	fields JSONB NOT NULL DEFAULT '[]',
	public_id TEXT NOT NULL UNIQUE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	submission_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipelines (
	id UUID PRIMARY KEY,
	form_id UUID NOT NULL UNIQUE REFERENCES forms(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	steps JSONB NOT NULL DEFAULT '[]',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS submissions (
	id UUID PRIMARY KEY,
	form_id UUID NOT NULL REFERENCES forms(id) ON DELETE CASCADE,
	data JSONB NOT NULL DEFAULT '{}',
	field_snapshot JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'pending',
	ip_address TEXT,
	user_agent TEXT,
	error_message TEXT,
	submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS submissions_form_id_idx ON submissions (form_id, submitted_at DESC);

CREATE TABLE IF NOT EXISTS step_outputs (
	id UUID PRIMARY KEY,
	submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	step_number INT NOT NULL,
	step_name TEXT NOT NULL,
	prompt TEXT NOT NULL,
	output TEXT NOT NULL,
	token_count INT,
	duration_ms BIGINT,
	model TEXT,
	executed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (submission_id, step_number)
);
`

// EnsureSchema creates the service's tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
