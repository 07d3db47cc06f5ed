// migrations.go — SQL-миграции, встроенные в код для упрощения деплоя.
package app

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE NOT NULL,
    nickname VARCHAR(255) NOT NULL,
    first_name VARCHAR(255) NOT NULL,
    is_admin BOOLEAN DEFAULT FALSE,
    password VARCHAR(255),
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);

CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_token ON admin_sessions(session_token);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    success BOOLEAN NOT NULL,
    attempt_time TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time DESC);
`

var migration002Settings = `
CREATE TABLE IF NOT EXISTS game_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    turn_timer INTEGER NOT NULL DEFAULT 30,
    turn_counter INTEGER NOT NULL DEFAULT 4,
    player_balance BIGINT NOT NULL DEFAULT 500,
    shares_minimal_price BIGINT NOT NULL DEFAULT 0,
    shares_maximum_price BIGINT NOT NULL DEFAULT 500
);
INSERT INTO game_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
`

var migration003Games = `
CREATE TABLE IF NOT EXISTS games (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT NOT NULL,
    started_at TIMESTAMP NOT NULL DEFAULT NOW(),
    finish_at TIMESTAMP,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    last_turn INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_games_chat_id ON games(chat_id);
CREATE INDEX IF NOT EXISTS idx_games_active ON games(is_active) WHERE is_active;

CREATE TABLE IF NOT EXISTS players (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    alive BOOLEAN NOT NULL DEFAULT TRUE,
    UNIQUE (user_id, game_id)
);
CREATE INDEX IF NOT EXISTS idx_players_game_id ON players(game_id);
`

var migration004Shares = `
CREATE TABLE IF NOT EXISTS shares (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) UNIQUE NOT NULL,
    start_price BIGINT NOT NULL CHECK (start_price > 0)
);
INSERT INTO shares (name, start_price) VALUES
    ('Газпром', 200),
    ('Сбер', 250)
ON CONFLICT (name) DO NOTHING;
`

var migration005Inventories = `
CREATE TABLE IF NOT EXISTS game_inventory (
    share_id BIGINT NOT NULL REFERENCES shares(id) ON DELETE CASCADE,
    game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    price BIGINT NOT NULL,
    PRIMARY KEY (game_id, share_id)
);

CREATE TABLE IF NOT EXISTS player_inventory (
    id BIGSERIAL PRIMARY KEY,
    share_id BIGINT NOT NULL REFERENCES shares(id) ON DELETE CASCADE,
    share_owner BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_player_inventory_owner ON player_inventory(share_owner, share_id);
`

var migration006Polls = `
CREATE TABLE IF NOT EXISTS polls (
    poll_id VARCHAR(255) PRIMARY KEY,
    game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE
);
`
