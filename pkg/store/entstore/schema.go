package entstore

import (
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names of the events table.
const (
	TableEvents          = "events"
	ColumnID             = "id"
	ColumnName           = "name"
	ColumnStart          = "dt_start"
	ColumnEnd            = "dt_end"
	ColumnURL            = "url"
	ColumnSourceID       = "source_id"
	ColumnSourceEventID  = "source_event_id"
	ColumnCreatedAt      = "created_at"
	indexSourceEventUniq = "events_source_id_source_event_id"
)

var timeSchemaType = map[string]string{
	dialect.Postgres: "TIMESTAMPTZ",
	dialect.SQLite:   "DATETIME",
}

var (
	// EventsColumns holds the columns of the events table.
	EventsColumns = []*schema.Column{
		{Name: ColumnID, Type: field.TypeInt64, Increment: true},
		{Name: ColumnName, Type: field.TypeString, Size: 2147483647},
		{Name: ColumnStart, Type: field.TypeTime, SchemaType: timeSchemaType},
		{Name: ColumnEnd, Type: field.TypeTime, SchemaType: timeSchemaType},
		{Name: ColumnURL, Type: field.TypeString, Size: 2147483647},
		{Name: ColumnSourceID, Type: field.TypeInt},
		{Name: ColumnSourceEventID, Type: field.TypeInt64},
		{Name: ColumnCreatedAt, Type: field.TypeTime, SchemaType: timeSchemaType},
	}
	// EventsTable is the idempotent sink for crawled events. The unique index
	// on (source_id, source_event_id) is the idempotency key.
	EventsTable = &schema.Table{
		Name:       TableEvents,
		Columns:    EventsColumns,
		PrimaryKey: []*schema.Column{EventsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    indexSourceEventUniq,
				Unique:  true,
				Columns: []*schema.Column{EventsColumns[5], EventsColumns[6]},
			},
		},
	}
)

var selectColumns = []string{
	ColumnID, ColumnName, ColumnStart, ColumnEnd, ColumnURL,
	ColumnSourceID, ColumnSourceEventID, ColumnCreatedAt,
}
