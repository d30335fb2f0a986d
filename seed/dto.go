package seed

// EntryDTO is the JSON/YAML representation of [webtree.Entry]
type EntryDTO struct {
	ID    *string    `json:"id,omitempty" yaml:"id,omitempty"` // Optional stable ID; generated when absent
	Name  string     `json:"name" yaml:"name"`
	Type  string     `json:"type" yaml:"type"` // "file" or "folder"
	Items []EntryDTO `json:"items,omitempty" yaml:"items,omitempty"`
}
