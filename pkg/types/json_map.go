package types

// JSONMap holds opaque gateway-specific payment data on the order record.
type JSONMap map[string]any

// Merge returns a copy of m with the entries of other layered on top.
func (m JSONMap) Merge(other JSONMap) JSONMap {
	if len(m) == 0 && len(other) == 0 {
		return JSONMap{}
	}
	merged := make(JSONMap, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
