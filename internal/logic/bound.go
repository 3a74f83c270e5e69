package logic

import "strconv"

// Bound is an optional numeric limit. The zero value is unset and never constrains.
type Bound struct {
	IsSet bool
	Value float64
}

// NewBound returns a set bound at v.
func NewBound(v float64) Bound {
	return Bound{IsSet: true, Value: v}
}

// Below reports whether v is under a set bound.
func (b Bound) Below(v float64) bool {
	return b.IsSet && v < b.Value
}

// Above reports whether v is over a set bound.
func (b Bound) Above(v float64) bool {
	return b.IsSet && v > b.Value
}

func (b Bound) String() string {
	if !b.IsSet {
		return "unset"
	}
	return strconv.FormatFloat(b.Value, 'f', -1, 64)
}
