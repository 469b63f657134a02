package modifier

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/structure"
)

type pushArgs struct {
	each        []any
	position    int
	hasPosition bool
	slice       int
	hasSlice    bool
	sort        any
	hasSort     bool
}

func (m *Modifier) ensure(doc domain.Document, addr []string) (domain.GetSetter, error) {
	field, err := m.fieldNavigator.EnsureField(doc, addr...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTypeMismatch, err)
	}
	return field, nil
}

// array returns the list stored at addr. Missing and null values are reported
// as not found.
func (m *Modifier) array(doc domain.Document, addr []string, mod string, create bool) (domain.GetSetter, []any, bool, error) {
	var field domain.GetSetter
	var err error
	if create {
		field, err = m.ensure(doc, addr)
	} else {
		field, err = m.fieldNavigator.GetField(doc, addr...)
	}
	if err != nil {
		return nil, nil, false, err
	}
	value, defined := field.Get()
	if !defined || value == nil {
		return field, nil, false, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, nil, false, ErrModFieldType{Mod: mod, Field: strings.Join(addr, "."), Want: "array", Actual: value}
	}
	return field, list, true, nil
}

func (m *Modifier) set(doc domain.Document, addr []string, arg any) error {
	field, err := m.ensure(doc, addr)
	if err != nil {
		return err
	}
	if value, defined := field.Get(); defined && data.Identical(value, arg) {
		return nil
	}
	field.Set(data.Clone(arg))
	return nil
}

func (m *Modifier) unset(doc domain.Document, addr []string, _ any) error {
	field, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return err
	}
	if _, defined := field.Get(); defined {
		field.Unset()
	}
	return nil
}

func (m *Modifier) checkNumber(verb string) argFunc {
	return func(field string, arg any) error {
		if structure.IsNumber(arg) {
			return nil
		}
		text, _ := data.MarshalJSONValue(arg)
		return domain.NewError(domain.ErrTypeMismatch, domain.CodeTypeMismatch, "Cannot %s with non-numeric argument: {%s: %s}", verb, field, text)
	}
}

// arith applies a numeric operation. Missing and null fields count as an int32
// zero.
func (m *Modifier) arith(mod string, op func(a, b any) (any, error)) modFunc {
	return func(doc domain.Document, addr []string, arg any) error {
		field, err := m.ensure(doc, addr)
		if err != nil {
			return err
		}
		value, defined := field.Get()
		if !defined || value == nil {
			value = int32(0)
		}
		if !structure.IsNumber(value) {
			return ErrModFieldType{Mod: mod, Field: strings.Join(addr, "."), Want: "number", Actual: value}
		}
		res, err := op(value, arg)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTypeMismatch, err)
		}
		field.Set(res)
		return nil
	}
}

func (m *Modifier) minMax(sign int) modFunc {
	return func(doc domain.Document, addr []string, arg any) error {
		field, err := m.ensure(doc, addr)
		if err != nil {
			return err
		}
		if value, defined := field.Get(); defined {
			comp, err := m.comparer.Compare(arg, value)
			if err != nil {
				return err
			}
			if comp*sign <= 0 {
				return nil
			}
		}
		field.Set(data.Clone(arg))
		return nil
	}
}

func (m *Modifier) checkCurrentDate(_ string, arg any) error {
	_, err := m.currentDateType(arg)
	return err
}

// currentDateType reports whether arg asks for a date instead of a timestamp.
func (m *Modifier) currentDateType(arg any) (bool, error) {
	switch t := arg.(type) {
	case bool:
		if t {
			return true, nil
		}
	case domain.Document:
		for k, v := range t.Iter() {
			if k != "$type" {
				return false, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "Unrecognized $currentDate option: %s", k)
			}
			switch v {
			case "date":
				return true, nil
			case "timestamp":
				return false, nil
			}
			text, _ := data.MarshalJSONValue(v)
			return false, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "The '$type' string field is required to be 'date' or 'timestamp': {$type: %s}", text)
		}
	}
	return false, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "%s is not a valid type for $currentDate. Please use a boolean ('true') or a $type expression ({$type: 'timestamp/date'})", structure.TypeName(arg))
}

func (m *Modifier) currentDate(doc domain.Document, addr []string, arg any) error {
	date, err := m.currentDateType(arg)
	if err != nil {
		return err
	}
	field, err := m.ensure(doc, addr)
	if err != nil {
		return err
	}
	if date {
		field.Set(m.timeGetter.GetTime())
	} else {
		field.Set(m.timeGetter.GetTimestamp())
	}
	return nil
}

// checkRename validates a $rename pair and returns the address of the target.
func (m *Modifier) checkRename(key string, arg any) ([]string, error) {
	dest, ok := arg.(string)
	if !ok {
		text, _ := data.MarshalJSONValue(arg)
		return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "The 'to' field for $rename must be a string: %s: %s", key, text)
	}
	if dest == "" {
		return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeEmptyFieldName, "An empty update path is not valid.")
	}
	for _, path := range []string{key, dest} {
		if strings.Contains(path, "$") {
			return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "The source and target field for $rename must not contain dynamic positional segments: %s", path)
		}
	}
	if key == dest {
		return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "The source and target field for $rename must differ: %s: %q", key, dest)
	}
	addr, err := m.fieldNavigator.GetAddress(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedUpdate, err)
	}
	return addr, nil
}

func (m *Modifier) rename(doc domain.Document, addr []string, arg any) error {
	src, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return err
	}
	value, defined := src.Get()
	if !defined {
		return nil
	}
	destAddr, err := m.fieldNavigator.GetAddress(arg.(string))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedUpdate, err)
	}
	dest, err := m.ensure(doc, destAddr)
	if err != nil {
		return err
	}
	src.Unset()
	dest.Set(value)
	return nil
}

func (m *Modifier) checkPush(_ string, arg any) error {
	_, err := m.parsePush(arg)
	return err
}

func (m *Modifier) parsePush(arg any) (*pushArgs, error) {
	doc, ok := arg.(domain.Document)
	if !ok || !doc.Has("$each") {
		return &pushArgs{each: []any{arg}}, nil
	}

	res := &pushArgs{}
	for k, v := range doc.Iter() {
		switch k {
		case "$each":
			list, ok := v.([]any)
			if !ok {
				return nil, ErrModArgType{Mod: "$each", Want: "an array", Actual: v}
			}
			res.each = list
		case "$slice":
			n, ok := structure.AsInteger(v)
			if !ok {
				return nil, ErrModArgType{Mod: "$slice", Want: "an integer", Actual: v}
			}
			res.slice, res.hasSlice = n, true
		case "$position":
			n, ok := structure.AsInteger(v)
			if !ok {
				return nil, ErrModArgType{Mod: "$position", Want: "an integer", Actual: v}
			}
			res.position, res.hasPosition = n, true
		case "$sort":
			if err := m.checkSort(v); err != nil {
				return nil, err
			}
			res.sort, res.hasSort = v, true
		default:
			return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "Unrecognized clause in $push: %s", k)
		}
	}
	return res, nil
}

func (m *Modifier) sortDirection(v any) (int, bool) {
	n, ok := structure.AsInteger(v)
	if !ok || (n != 1 && n != -1) {
		return 0, false
	}
	return n, true
}

func (m *Modifier) checkSort(v any) error {
	errSort := domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "The $sort is invalid: use 1/-1 to sort the whole element, or {field:1/-1} to sort embedded fields")
	if doc, ok := v.(domain.Document); ok {
		if doc.Len() == 0 {
			return domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "The $sort pattern is empty when it should be a set of fields.")
		}
		for k, dir := range doc.Iter() {
			if _, err := m.fieldNavigator.GetAddress(k); err != nil {
				return fmt.Errorf("%w: %w", domain.ErrMalformedUpdate, err)
			}
			if _, ok := m.sortDirection(dir); !ok {
				return errSort
			}
		}
		return nil
	}
	if _, ok := m.sortDirection(v); !ok {
		return errSort
	}
	return nil
}

func (m *Modifier) push(doc domain.Document, addr []string, arg any) error {
	args, err := m.parsePush(arg)
	if err != nil {
		return err
	}
	field, list, _, err := m.array(doc, addr, "$push", true)
	if err != nil {
		return err
	}

	each := make([]any, len(args.each))
	for n, v := range args.each {
		each[n] = data.Clone(v)
	}

	at := len(list)
	if args.hasPosition {
		at = args.position
		if at < 0 {
			at = max(len(list)+at, 0)
		}
		at = min(at, len(list))
	}
	res := make([]any, 0, len(list)+len(each))
	res = append(res, list[:at]...)
	res = append(res, each...)
	res = append(res, list[at:]...)

	if args.hasSort {
		if res, err = m.sortList(res, args.sort); err != nil {
			return err
		}
	}
	if args.hasSlice {
		switch {
		case args.slice >= 0:
			res = res[:min(args.slice, len(res))]
		default:
			res = res[max(len(res)+args.slice, 0):]
		}
	}

	field.Set(res)
	return nil
}

func (m *Modifier) sortList(list []any, order any) ([]any, error) {
	var sortErr error
	cmp := func(a, b any) int {
		c, err := m.compareBySort(a, b, order)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c
	}
	slices.SortStableFunc(list, cmp)
	return list, sortErr
}

func (m *Modifier) compareBySort(a, b any, order any) (int, error) {
	doc, ok := order.(domain.Document)
	if !ok {
		dir, _ := m.sortDirection(order)
		c, err := m.comparer.Compare(a, b)
		return c * dir, err
	}
	for k, v := range doc.Iter() {
		dir, _ := m.sortDirection(v)
		addr, err := m.fieldNavigator.GetAddress(k)
		if err != nil {
			return 0, err
		}
		fa, err := m.fieldNavigator.GetField(a, addr...)
		if err != nil {
			return 0, err
		}
		fb, err := m.fieldNavigator.GetField(b, addr...)
		if err != nil {
			return 0, err
		}
		c, err := m.comparer.Compare(fa, fb)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return c * dir, nil
		}
	}
	return 0, nil
}

func (m *Modifier) checkList(mod string) argFunc {
	return func(_ string, arg any) error {
		if _, ok := arg.([]any); !ok {
			return ErrModArgType{Mod: mod, Want: "an array", Actual: arg}
		}
		return nil
	}
}

func (m *Modifier) pushAll(doc domain.Document, addr []string, arg any) error {
	field, list, _, err := m.array(doc, addr, "$pushAll", true)
	if err != nil {
		return err
	}
	values, _ := arg.([]any)
	res := slices.Clone(list)
	for _, v := range values {
		res = append(res, data.Clone(v))
	}
	field.Set(res)
	return nil
}

func (m *Modifier) checkAddToSet(_ string, arg any) error {
	_, err := m.addToSetValues(arg)
	return err
}

func (m *Modifier) addToSetValues(arg any) ([]any, error) {
	doc, ok := arg.(domain.Document)
	if !ok || !doc.Has("$each") {
		return []any{arg}, nil
	}
	if doc.Len() > 1 {
		text, _ := data.MarshalJSON(doc)
		return nil, domain.NewError(domain.ErrMalformedUpdate, domain.CodeBadValue, "Found unexpected fields after $each in $addToSet: %s", text)
	}
	list, ok := doc.Get("$each").([]any)
	if !ok {
		return nil, ErrModArgType{Mod: "$each", Want: "an array", Actual: doc.Get("$each")}
	}
	return list, nil
}

func (m *Modifier) addToSet(doc domain.Document, addr []string, arg any) error {
	values, err := m.addToSetValues(arg)
	if err != nil {
		return err
	}
	field, list, _, err := m.array(doc, addr, "$addToSet", true)
	if err != nil {
		return err
	}
	res := slices.Clone(list)
	if res == nil {
		res = []any{}
	}
	for _, v := range values {
		found, err := structure.Contains(res, v, m.comparer.Equal)
		if err != nil {
			return err
		}
		if !found {
			res = append(res, data.Clone(v))
		}
	}
	field.Set(res)
	return nil
}

func (m *Modifier) checkPull(_ string, arg any) error {
	_, err := m.matcher.MatchValue(nil, arg)
	return err
}

func (m *Modifier) pull(doc domain.Document, addr []string, arg any) error {
	field, list, found, err := m.array(doc, addr, "$pull", false)
	if err != nil || !found {
		return err
	}
	res := make([]any, 0, len(list))
	for _, item := range list {
		matched, err := m.matcher.MatchValue(item, arg)
		if err != nil {
			return err
		}
		if !matched {
			res = append(res, item)
		}
	}
	if len(res) != len(list) {
		field.Set(res)
	}
	return nil
}

func (m *Modifier) pullAll(doc domain.Document, addr []string, arg any) error {
	field, list, found, err := m.array(doc, addr, "$pullAll", false)
	if err != nil || !found {
		return err
	}
	values, _ := arg.([]any)
	res := make([]any, 0, len(list))
	for _, item := range list {
		remove, err := structure.Contains(values, item, m.comparer.Equal)
		if err != nil {
			return err
		}
		if !remove {
			res = append(res, item)
		}
	}
	if len(res) != len(list) {
		field.Set(res)
	}
	return nil
}

func (m *Modifier) checkPop(field string, arg any) error {
	if !structure.IsNumber(arg) {
		text, _ := data.MarshalJSONValue(arg)
		return domain.NewError(domain.ErrMalformedUpdate, domain.CodeFailedToParse, "Expected a number in: %s: %s", field, text)
	}
	return nil
}

// pop removes the first element when arg is -1 and the last one otherwise.
func (m *Modifier) pop(doc domain.Document, addr []string, arg any) error {
	field, list, found, err := m.array(doc, addr, "$pop", false)
	if err != nil || !found || len(list) == 0 {
		return err
	}
	if structure.ToFloat64(arg) == -1 {
		field.Set(slices.Clone(list[1:]))
	} else {
		field.Set(slices.Clone(list[:len(list)-1]))
	}
	return nil
}
