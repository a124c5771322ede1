package dto

import (
	"softdeletes/internal/metadata"
)

// EntityMetaResponse describes one registered entity type.
type EntityMetaResponse struct {
	Name         string              `json:"name"`
	Table        string              `json:"table"`
	Capabilities []string            `json:"capabilities"`
	Columns      []string            `json:"columns"`
	Fields       []metadata.FieldDef `json:"fields"`
	Relations    []metadata.Relation `json:"relations,omitempty"`

	// Filtered reports whether reads of the entity get a query filter.
	Filtered bool `json:"filtered"`
}

// FromEntityDef creates EntityMetaResponse from a registry descriptor.
func FromEntityDef(def *metadata.EntityDef) EntityMetaResponse {
	return EntityMetaResponse{
		Name:         def.Name,
		Table:        def.TableName,
		Capabilities: def.Capabilities.Names(),
		Columns:      def.Columns,
		Fields:       def.Fields,
		Relations:    def.Relations,
		Filtered:     def.QueryFilter != nil,
	}
}
