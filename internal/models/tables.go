package models

// System table names shared across the schema bootstrap, the migration
// runner, and the migrations themselves.
const (
	TableActivity    = "directus_activity"
	TableComments    = "directus_comments"
	TableCollections = "directus_collections"
	TableUsers       = "directus_users"
	TableMigrations  = "directus_migrations"
)
