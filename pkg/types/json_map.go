package types

// JSONMap stores an arbitrary JSON object inside a JSONB column. Pair it with
// the gorm json serializer.
type JSONMap map[string]any

// Merge returns a copy of j with the keys of other applied on top.
func (j JSONMap) Merge(other map[string]any) JSONMap {
	out := make(JSONMap, len(j)+len(other))
	for k, v := range j {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
