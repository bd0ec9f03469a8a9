package models

// All lists the models owned by this service, in dependency order, for
// AutoMigrate in SQLite dev mode and tests.
func All() []any {
	return []any{
		&LabelBatch{},
		&Label{},
		&LabelEvent{},
	}
}
