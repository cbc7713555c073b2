package metadata

// Item is an immutable snapshot of everything computed for one identifier at
// one point in time. An invalid item means the metadata could not be computed
// yet, which is an expected state rather than a failure.
type Item interface {
	ID() string
	IsValid() bool
}

// BaseItem is embeddable by provider items.
type BaseItem struct {
	id    string
	valid bool
}

// NewBaseItem creates a BaseItem for id.
func NewBaseItem(id string, valid bool) BaseItem {
	return BaseItem{id: id, valid: valid}
}

// ID returns the instance identifier of the item.
func (b BaseItem) ID() string {
	return b.id
}

// IsValid reports whether the item was fully computed.
func (b BaseItem) IsValid() bool {
	return b.valid
}

// Valid reports whether item is non-nil and valid.
func Valid(item Item) bool {
	return item != nil && item.IsValid()
}
