package models

import "time"

// DeletedField is the reserved field name recorded when a tracked item
// disappears: old value true, new value null.
const DeletedField = "__deleted__"

// FieldChange is one recorded mutation of a single field on a single tracked
// item. Rows are append-only and unique on (item_id, field_name, changed_at).
type FieldChange struct {
	ProjectName string    `json:"project_name" db:"project_name"`
	ItemID      string    `json:"item_id" db:"item_id"`
	FieldName   string    `json:"field_name" db:"field_name"`
	FieldType   string    `json:"field_type" db:"field_type"`
	OldValue    Value     `json:"old_value" db:"old_value"`
	NewValue    Value     `json:"new_value" db:"new_value"`
	ChangedAt   time.Time `json:"changed_at" db:"changed_at"`
	DetectedAt  time.Time `json:"detected_at" db:"detected_at"`
	Actor       *string   `json:"actor,omitempty" db:"actor"`
}

// IsDeletion reports whether this change records the item's removal.
func (c *FieldChange) IsDeletion() bool {
	return c.FieldName == DeletedField
}

// FieldValue is the latest known value of one field on one item, unique on
// (item_id, field_name) and updated in place as changes arrive. Absence of
// rows for an item means it was never observed or was deleted.
type FieldValue struct {
	ProjectName string    `json:"project_name" db:"project_name"`
	ItemID      string    `json:"item_id" db:"item_id"`
	FieldName   string    `json:"field_name" db:"field_name"`
	FieldType   string    `json:"field_type" db:"field_type"`
	Value       Value     `json:"value" db:"value"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
