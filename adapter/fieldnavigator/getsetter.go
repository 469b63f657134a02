package fieldnavigator

import "github.com/vinicius-lino-figueiredo/gemongo/domain"

// ListGetSetter is a [domain.GetSetter] than can read an write a specific index
// in a slice of [any]. When Parent is set, writing past the end of the list
// pads it with nulls and stores the grown list through Parent.
type ListGetSetter struct {
	List   []any
	Index  int
	Parent domain.GetSetter
}

// NewGetSetterWithArrayIndex returns a new implementation of [domain.GetSetter]
// that will represent a value from a slice of [any].
func NewGetSetterWithArrayIndex(list []any, index int) domain.GetSetter {
	return &ListGetSetter{List: list, Index: index}
}

// Get implements [domain.GetSetter].
func (l *ListGetSetter) Get() (value any, defined bool) {
	if l.Index >= 0 && l.Index < len(l.List) {
		return l.List[l.Index], true
	}
	return nil, false
}

// Set implements [domain.GetSetter].
func (l *ListGetSetter) Set(value any) {
	if l.Index < 0 {
		return
	}
	if l.Index < len(l.List) {
		l.List[l.Index] = value
		return
	}
	if l.Parent == nil {
		return
	}
	grown := make([]any, l.Index+1)
	copy(grown, l.List)
	grown[l.Index] = value
	l.List = grown
	l.Parent.Set(grown)
}

// Unset implements [domain.GetSetter].
func (l *ListGetSetter) Unset() {
	if l.Index >= 0 && l.Index < len(l.List) {
		l.List[l.Index] = nil
	}
}

// DocGetSetter is a [domain.GetSetter] than can read an write a specific key in
// a [domain.Document].
type DocGetSetter struct {
	Doc domain.Document
	Key string
}

// NewGetSetterWithDoc returns a new implementation of [domain.GetSetter] that
// will represent a value from a [domain.Document].
func NewGetSetterWithDoc(doc domain.Document, key string) domain.GetSetter {
	return &DocGetSetter{Doc: doc, Key: key}
}

// Get implements [domain.GetSetter].
func (d *DocGetSetter) Get() (value any, defined bool) {
	return d.Doc.Get(d.Key), d.Doc.Has(d.Key)
}

// Set implements [domain.GetSetter].
func (d *DocGetSetter) Set(value any) {
	d.Doc.Set(d.Key, value)
}

// Unset implements [domain.GetSetter].
func (d *DocGetSetter) Unset() {
	d.Doc.Unset(d.Key)
}

// PendingGetSetter represents a value whose parent documents do not exist
// yet. Root is a chain of empty documents ending at Leaf; setting a value
// stores it under Key in Leaf and attaches Root through Parent.
type PendingGetSetter struct {
	Parent domain.GetSetter
	Root   domain.Document
	Leaf   domain.Document
	Key    string
}

// Get implements [domain.GetSetter]. Pending values are always undefined.
func (p *PendingGetSetter) Get() (any, bool) { return nil, false }

// Set implements [domain.GetSetter].
func (p *PendingGetSetter) Set(value any) {
	p.Leaf.Set(p.Key, value)
	p.Parent.Set(p.Root)
}

// Unset implements [domain.GetSetter].
func (p *PendingGetSetter) Unset() {}

// EmptyGetSetter represents a missing value.
type EmptyGetSetter struct{}

// NewGetSetterEmpty returns a new [domain.GetSetter] of an undefined value.
func NewGetSetterEmpty() domain.GetSetter {
	return &EmptyGetSetter{}
}

// Get implements [domain.GetSetter].
func (gs *EmptyGetSetter) Get() (any, bool) { return nil, false }

// Set implements [domain.GetSetter].
func (gs *EmptyGetSetter) Set(any) {}

// Unset implements [domain.GetSetter].
func (gs *EmptyGetSetter) Unset() {}
