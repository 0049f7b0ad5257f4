package memory

func cloneItem(item *Item) *Item {
	if item == nil {
		return nil
	}
	clone := *item
	if item.Tags != nil {
		clone.Tags = append([]string(nil), item.Tags...)
	}
	if item.Associations != nil {
		clone.Associations = append([]string(nil), item.Associations...)
	}
	return &clone
}
