package database

// Timer instants (expiry_at, created_at) are unix milliseconds. Subscription created_at is unix seconds.

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    endpoint TEXT NOT NULL UNIQUE,
    credentials TEXT NOT NULL,
    encrypted BOOLEAN NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS timers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subscription_id INTEGER NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    client_id TEXT,
    expiry_at INTEGER NOT NULL,
    message TEXT NOT NULL,
    notified BOOLEAN NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timers_due ON timers (notified, expiry_at);
CREATE INDEX IF NOT EXISTS idx_timers_subscription ON timers (subscription_id, client_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id BIGSERIAL PRIMARY KEY,
    endpoint TEXT NOT NULL UNIQUE,
    credentials TEXT NOT NULL,
    encrypted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS timers (
    id BIGSERIAL PRIMARY KEY,
    subscription_id BIGINT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    client_id TEXT,
    expiry_at BIGINT NOT NULL,
    message TEXT NOT NULL,
    notified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timers_due ON timers (notified, expiry_at);
CREATE INDEX IF NOT EXISTS idx_timers_subscription ON timers (subscription_id, client_id);
`
