package pgstore

// NotifyChannel is the LISTEN/NOTIFY channel the row triggers publish on.
const NotifyChannel = "warren_changes"

// Schema creates the tables, the settings row and the change triggers. It is idempotent.
//
// Table names double as board.Kind values: the trigger payload's "kind" is TG_TABLE_NAME.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL,
	order_key   INTEGER NOT NULL DEFAULT 0,
	position_x  INTEGER NOT NULL DEFAULT 0,
	position_y  INTEGER NOT NULL DEFAULT 0,
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	person      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS room_status (
	room_id          UUID PRIMARY KEY REFERENCES rooms(id) ON DELETE CASCADE,
	is_open          BOOLEAN NOT NULL DEFAULT false,
	manual_override  BOOLEAN NOT NULL DEFAULT false,
	last_updated     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS daily_configs (
	id          UUID PRIMARY KEY,
	room_id     UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	weekday     SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
	activity    TEXT NOT NULL DEFAULT '',
	open_time   TEXT,
	close_time  TEXT,
	UNIQUE (room_id, weekday)
);

CREATE TABLE IF NOT EXISTS app_settings (
	id                  INTEGER PRIMARY KEY CHECK (id = 1),
	night_mode_enabled  BOOLEAN NOT NULL DEFAULT false,
	night_start         TEXT NOT NULL DEFAULT '22:00',
	night_end           TEXT NOT NULL DEFAULT '06:00',
	last_daily_reset    DATE
);

INSERT INTO app_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

CREATE OR REPLACE FUNCTION warren_notify() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('warren_changes', json_build_object(
		'kind', TG_TABLE_NAME,
		'op',   TG_OP,
		'old',  CASE WHEN TG_OP = 'DELETE' THEN row_to_json(OLD) END,
		'new',  CASE WHEN TG_OP <> 'DELETE' THEN row_to_json(NEW) END
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS rooms_notify ON rooms;
CREATE TRIGGER rooms_notify AFTER INSERT OR UPDATE OR DELETE ON rooms
	FOR EACH ROW EXECUTE FUNCTION warren_notify();

DROP TRIGGER IF EXISTS room_status_notify ON room_status;
CREATE TRIGGER room_status_notify AFTER INSERT OR UPDATE OR DELETE ON room_status
	FOR EACH ROW EXECUTE FUNCTION warren_notify();

DROP TRIGGER IF EXISTS daily_configs_notify ON daily_configs;
CREATE TRIGGER daily_configs_notify AFTER INSERT OR UPDATE OR DELETE ON daily_configs
	FOR EACH ROW EXECUTE FUNCTION warren_notify();

DROP TRIGGER IF EXISTS app_settings_notify ON app_settings;
CREATE TRIGGER app_settings_notify AFTER INSERT OR UPDATE OR DELETE ON app_settings
	FOR EACH ROW EXECUTE FUNCTION warren_notify();
`
