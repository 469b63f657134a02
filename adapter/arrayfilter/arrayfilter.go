// Package arrayfilter parses the array filters of an update and expands
// filtered positional paths ($[] and $[<identifier>]) into concrete ones.
package arrayfilter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
)

// AllElements is the path segment that selects every element of an array.
const AllElements = "$[]"

var identifierPattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

// Parser implements [domain.ArrayFiltersParser].
type Parser struct {
	documentFactory domain.DocumentFactory
	matcher         domain.Matcher
	fieldNavigator  domain.FieldNavigator
}

// NewParser returns a new implementation of [domain.ArrayFiltersParser].
func NewParser(options ...Option) domain.ArrayFiltersParser {
	p := &Parser{
		documentFactory: data.NewDocument,
		matcher:         matcher.NewMatcher(),
		fieldNavigator:  fieldnavigator.NewFieldNavigator(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Parse implements [domain.ArrayFiltersParser]. Each filter must have a
// single top-level field, which is either an identifier or an identifier
// followed by a sub path, and every identifier must be used by a key of one
// of the update operators.
func (p *Parser) Parse(filters []any, update domain.Document) (domain.ArrayFilters, error) {
	res := &Filters{
		byID:           make(map[string]any, len(filters)),
		matcher:        p.matcher,
		fieldNavigator: p.fieldNavigator,
	}

	for _, raw := range filters {
		doc, ok := raw.(domain.Document)
		if !ok {
			var err error
			if doc, err = p.documentFactory(raw); err != nil {
				return nil, domain.NewError(domain.ErrArrayFilter, domain.CodeTypeMismatch, "Expected arrayFilters to be an array of objects, found %T", raw)
			}
		}

		id, query, err := p.parseFilter(doc)
		if err != nil {
			return nil, err
		}
		if _, dup := res.byID[id]; dup {
			return nil, domain.NewError(domain.ErrArrayFilter, domain.CodeFailedToParse, "Found multiple array filters with the same top-level field name %s", id)
		}
		// compiles the filter so malformed queries fail before any update
		if _, err := p.matcher.MatchValue(nil, query); err != nil {
			return nil, err
		}
		res.byID[id] = query
		res.order = append(res.order, id)
	}

	if len(res.order) > 0 && update != nil {
		if err := p.checkUsage(res.order, update); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *Parser) parseFilter(doc domain.Document) (string, any, error) {
	var keys [2]string
	var value any
	n := 0
	for k, v := range doc.Iter() {
		if n < len(keys) {
			keys[n] = k
		}
		value = v
		n++
	}
	switch {
	case n == 0:
		return "", nil, domain.NewError(domain.ErrArrayFilter, domain.CodeFailedToParse, "Cannot use an expression without a top-level field name in arrayFilters")
	case n > 1:
		return "", nil, domain.NewError(domain.ErrArrayFilter, domain.CodeFailedToParse, "Error parsing array filter :: caused by :: Expected a single top-level field name, found '%s' and '%s'", keys[0], keys[1])
	}

	id, sub, hasSub := strings.Cut(keys[0], ".")
	if !identifierPattern.MatchString(id) {
		return "", nil, domain.NewError(domain.ErrArrayFilter, domain.CodeBadValue, "The top-level field name must be an alphanumeric string beginning with a lowercase letter, found '%s'", id)
	}
	if !hasSub {
		return id, value, nil
	}
	if _, err := p.fieldNavigator.GetAddress(sub); err != nil {
		return "", nil, domain.NewError(domain.ErrArrayFilter, domain.CodeBadValue, "%s", err.Error())
	}
	query, err := p.documentFactory(nil)
	if err != nil {
		return "", nil, err
	}
	query.Set(sub, value)
	return id, query, nil
}

func (p *Parser) checkUsage(ids []string, update domain.Document) error {
	for _, id := range ids {
		token := "$[" + id + "]"
		if !p.used(token, update) {
			text, _ := data.MarshalJSON(update)
			return domain.NewError(domain.ErrArrayFilter, domain.CodeFailedToParse, "The array filter for identifier '%s' was not used in the update %s", id, text)
		}
	}
	return nil
}

func (p *Parser) used(token string, update domain.Document) bool {
	for value := range update.Values() {
		fields, ok := value.(domain.Document)
		if !ok {
			continue
		}
		for key := range fields.Keys() {
			if strings.Contains(key, token) {
				return true
			}
		}
	}
	return false
}

// Filters implements [domain.ArrayFilters]. It is not changed after parsing
// and can be shared by the expansions of a single update.
type Filters struct {
	byID           map[string]any
	order          []string
	matcher        domain.Matcher
	fieldNavigator domain.FieldNavigator
}

// Len implements [domain.ArrayFilters].
func (f *Filters) Len() int {
	return len(f.order)
}

// identifiers returns the declared identifiers in declaration order.
func (f *Filters) identifiers() []string {
	return append([]string(nil), f.order...)
}

// Validate implements [domain.ArrayFilters].
func (f *Filters) Validate(path string) error {
	addr, err := f.fieldNavigator.GetAddress(path)
	if err != nil {
		return err
	}
	for n, segment := range addr {
		id, ok := identifier(segment)
		if !ok {
			continue
		}
		if n == 0 {
			return f.firstPositionErr(path)
		}
		if _, ok := f.byID[id]; !ok && segment != AllElements {
			return domain.NewError(domain.ErrArrayFilter, domain.CodeBadValue, "No array filter found for identifier '%s' in path '%s'", id, path)
		}
	}
	return nil
}

// Expand implements [domain.ArrayFilters]. Paths without filter segments are
// returned unchanged. Each filter segment is replaced by the indexes of the
// elements it selects, in ascending order, and later segments are expanded
// against the selected elements.
func (f *Filters) Expand(doc domain.Document, path string) ([]string, error) {
	if err := f.Validate(path); err != nil {
		return nil, err
	}
	addr, err := f.fieldNavigator.GetAddress(path)
	if err != nil {
		return nil, err
	}
	return f.expand(doc, addr)
}

func (f *Filters) expand(doc domain.Document, addr []string) ([]string, error) {
	at := -1
	var id string
	for n, segment := range addr {
		if s, ok := identifier(segment); ok {
			at, id = n, s
			break
		}
	}
	if at < 0 {
		return []string{strings.Join(addr, ".")}, nil
	}

	prefix := addr[:at]
	gs, err := f.fieldNavigator.GetField(doc, prefix...)
	if err != nil {
		return nil, err
	}
	value, defined := gs.Get()
	if !defined {
		return nil, domain.NewError(domain.ErrArrayFilter, domain.CodeBadValue, "The path '%s' must exist in the document in order to apply array updates.", strings.Join(prefix, "."))
	}
	list, ok := value.([]any)
	if !ok {
		text, _ := data.MarshalJSONValue(value)
		return nil, domain.NewError(domain.ErrArrayFilter, domain.CodeBadValue, "Cannot apply array updates to non-array element %s: %s", prefix[len(prefix)-1], text)
	}

	res := make([]string, 0, len(list))
	for n, item := range list {
		if addr[at] != AllElements {
			matched, err := f.matcher.MatchValue(item, f.byID[id])
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
		}
		concrete := make([]string, 0, len(addr))
		concrete = append(concrete, prefix...)
		concrete = append(concrete, strconv.Itoa(n))
		concrete = append(concrete, addr[at+1:]...)
		paths, err := f.expand(doc, concrete)
		if err != nil {
			return nil, err
		}
		res = append(res, paths...)
	}
	return res, nil
}

func (f *Filters) firstPositionErr(path string) error {
	return domain.NewError(domain.ErrArrayFilter, domain.CodeBadValue, "Cannot have array filter identifier (i.e. '$[<id>]') element in the first position in path '%s'", path)
}

// identifier returns the identifier of a filter segment. The identifier of
// $[] is empty.
func identifier(segment string) (string, bool) {
	if !strings.HasPrefix(segment, "$[") || !strings.HasSuffix(segment, "]") {
		return "", false
	}
	return segment[2 : len(segment)-1], true
}
