package sqlinline

// Schema lists the idempotent DDL statements the ledger applies at startup,
// in order.
var Schema = []string{
	QCreateUserCredits,
	QCreateCreditHistory,
	QCreateGenerations,
	QCreateGenerationsIndex,
	QCreateIntegrationTokens,
}

const QCreateUserCredits = `--sql caedad98-1bd2-4e47-8825-ea972e9834e0
create table if not exists user_credits (
    user_id text primary key,
    remain_count integer not null default 0,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QCreateCreditHistory = `--sql 7749a981-6740-4b1a-8660-23917ac6c941
create table if not exists credit_history (
    id uuid primary key,
    user_join text not null,
    uses text not null,
    count integer not null,
    created_at timestamptz not null default now()
);
`

const QCreateGenerations = `--sql 65a4890f-8459-46f9-ac6b-87e067910794
create table if not exists generations (
    id uuid primary key,
    user_id text not null,
    type text not null,
    original_url text not null default '',
    result_url text not null,
    prompt text not null default '',
    clothing_prompt text not null default '',
    method text not null default '',
    credits integer not null default 0,
    created_at timestamptz not null,
    expires_at timestamptz not null
);
`

const QCreateGenerationsIndex = `--sql 767b4cc5-6821-4ad9-a440-b24bf36cf1de
create index if not exists generations_user_expiry_idx on generations (user_id, expires_at);
`

const QCreateIntegrationTokens = `--sql 00ceceeb-f13a-4b16-9d32-f53d7217753a
create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
