package model

// Object is a stored object as seen through its field values.
type Object map[string]any

func (o Object) Field(name string) (any, bool) {
	value, exists := o[name]
	return value, exists
}
