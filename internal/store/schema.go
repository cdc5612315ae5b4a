package store

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	profilesTable = "learner_profiles"
	eventsTable   = "learner_events"
)

var (
	profilesColumns = []*schema.Column{
		{Name: "learner_id", Type: field.TypeString, Size: 255},
		{Name: "revision", Type: field.TypeInt64},
		{Name: "format", Type: field.TypeString, Size: 32},
		{Name: "data", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ProfilesTable holds one row per learner. The whole profile lives in the
	// data column; revision guards concurrent writers.
	ProfilesTable = &schema.Table{
		Name:       profilesTable,
		Columns:    profilesColumns,
		PrimaryKey: []*schema.Column{profilesColumns[0]},
	}

	eventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "learner_id", Type: field.TypeString, Size: 255},
		{Name: "kind", Type: field.TypeString, Size: 64},
		{Name: "topic", Type: field.TypeString, Size: 255, Default: ""},
		{Name: "data", Type: field.TypeJSON, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// EventsTable is the append-only audit log. The auto-increment id is the
	// event sequence.
	EventsTable = &schema.Table{
		Name:       eventsTable,
		Columns:    eventsColumns,
		PrimaryKey: []*schema.Column{eventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "learnerevent_learner_id_id",
				Columns: []*schema.Column{eventsColumns[1], eventsColumns[0]},
			},
		},
	}

	tables = []*schema.Table{ProfilesTable, EventsTable}
)

// migrate creates or upgrades the tables.
func migrate(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
