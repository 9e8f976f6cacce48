package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a v4 id when the caller left it blank. Ids are generated in
// the application so the same models work against sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
