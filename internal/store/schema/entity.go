package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Entity represents the entities table - one row per entity of the subgraph graph, keyed by (kind, id)
type Entity struct {
	// Kind is the entity type (Collection, Token, Listing, ...)
	Kind string `gorm:"column:kind;primaryKey;type:text"`
	// ID is the deterministic entity id
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Data is the JSON encoding of the entity
	Data datatypes.JSON `gorm:"column:data;not null"`
	// UpdatedAt is the timestamp of the last write
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the Entity model
func (Entity) TableName() string {
	return "entities"
}
