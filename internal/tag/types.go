package tag

// TemporaryIdentifier marks tags generated by algorithms for one run.
// The string is only ever compared as a whole.
const TemporaryIdentifier = "automatic_temporary_tag:82e4509f-e262-463f-8ee5-140ca400ea79"

// Tag classifies elements and collections. Tags form a DAG through
// super tag relations, where a sub tag implies all of its super tags.
type Tag struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Notes             string `json:"notes,omitempty"`
	UseForPreferences bool   `json:"use_for_preferences"`
}

// IsTemporary reports whether the tag was generated for an algorithm
// run and is subject to scrubbing.
func (t *Tag) IsTemporary() bool {
	return t.Notes == TemporaryIdentifier
}

// CreateInput holds the fields for creating a tag.
type CreateInput struct {
	Title             string
	Notes             string
	UseForPreferences bool
}

// UpdateInput holds optional field updates for a tag. Nil fields are
// left untouched.
type UpdateInput struct {
	Title             *string
	Notes             *string
	UseForPreferences *bool
}
