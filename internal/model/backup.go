package model

import (
	"encoding/json"
	"time"
)

// Backup is an archived copy of the backend's database export.
//
// Data is the opaque blob returned by the backend's backup endpoint. It is
// omitted from list responses, where only the metadata is loaded.
type Backup struct {
	ID        string          `json:"id"        db:"id"`
	Label     string          `json:"label"     db:"label"`
	CreatedBy string          `json:"createdBy" db:"created_by"`
	Size      int64           `json:"size"      db:"size"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	Data      json.RawMessage `json:"data,omitempty" db:"data"`
}
