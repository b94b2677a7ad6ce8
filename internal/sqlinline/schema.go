package sqlinline

import _ "embed"

// Schema is applied at startup by infra.ApplySchema.
//
//go:embed schema.sql
var Schema string
