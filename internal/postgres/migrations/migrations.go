// Package migrations embeds the SQL schema applied by the gateway's
// migrate subcommand.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Files lists the migrations in the order they must be applied.
var Files = []string{
	"001_create_translation_tasks.sql",
	"002_create_task_results.sql",
}
