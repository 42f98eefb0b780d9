// Package migrations embebe las migraciones SQL de Postgres.
// Formato: {version}_{nombre}_up.sql / {version}_{nombre}_down.sql
package migrations

import "embed"

// FS contiene los archivos *_up.sql y *_down.sql.
//
//go:embed *.sql
var FS embed.FS
