package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateEventTables, downCreateEventTables)
}

func upCreateEventTables(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS event_details (
			id                uuid PRIMARY KEY,
			title             text NOT NULL,
			description       text NOT NULL DEFAULT '',
			short_description text NOT NULL DEFAULT '',
			event_type        text NOT NULL,
			is_restricted     boolean NOT NULL DEFAULT true,
			location          text,
			latitude          double precision,
			longitude         double precision,
			online_provider   text,
			meeting_details   jsonb,
			recordings        jsonb,
			max_attendees     integer NOT NULL DEFAULT 0,
			ideal_time        integer,
			status            text NOT NULL,
			metadata          jsonb,
			created_by        text NOT NULL,
			updated_by        text NOT NULL DEFAULT '',
			created_at        timestamptz NOT NULL DEFAULT now(),
			updated_at        timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_details_status ON event_details (status)`,
		`CREATE TABLE IF NOT EXISTS events (
			id                      uuid PRIMARY KEY,
			event_detail_id         uuid NOT NULL REFERENCES event_details (id),
			is_recurring            boolean NOT NULL DEFAULT false,
			recurrence_pattern      jsonb NOT NULL DEFAULT '{}'::jsonb,
			auto_enroll             boolean NOT NULL DEFAULT false,
			registration_start_date timestamptz,
			registration_end_date   timestamptz,
			created_by              text NOT NULL,
			updated_by              text NOT NULL DEFAULT '',
			created_at              timestamptz NOT NULL DEFAULT now(),
			updated_at              timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_event_detail_id ON events (event_detail_id)`,
		`CREATE TABLE IF NOT EXISTS event_repetitions (
			id              uuid PRIMARY KEY,
			event_id        uuid NOT NULL REFERENCES events (id) ON DELETE CASCADE,
			event_detail_id uuid NOT NULL REFERENCES event_details (id),
			start_date_time timestamptz NOT NULL,
			end_date_time   timestamptz NOT NULL,
			online_details  jsonb,
			er_meta_data    jsonb,
			created_by      text NOT NULL,
			updated_by      text NOT NULL DEFAULT '',
			created_at      timestamptz NOT NULL DEFAULT now(),
			updated_at      timestamptz NOT NULL DEFAULT now(),
			CONSTRAINT chk_event_repetitions_window CHECK (start_date_time < end_date_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_repetitions_event_start ON event_repetitions (event_id, start_date_time)`,
		`CREATE INDEX IF NOT EXISTS idx_event_repetitions_event_detail_id ON event_repetitions (event_detail_id)`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func downCreateEventTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"event_repetitions", "events", "event_details"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return err
		}
	}
	return nil
}
