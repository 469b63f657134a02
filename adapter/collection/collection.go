// Package collection contains an in-memory [domain.Collection] that keeps its
// documents in indexes and uses the matcher and the modifier to query and
// update them.
package collection

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gemongo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/index"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/modifier"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"github.com/vinicius-lino-figueiredo/gemongo/pkg/ctxsync"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// codeMultiReplacement is the legacy code for multi updates without update
// operators.
const codeMultiReplacement = 10158

var (
	// ErrMultiReplacement is returned when a multi update uses a replacement
	// document.
	ErrMultiReplacement = &domain.Error{
		Kind: domain.ErrMalformedUpdate,
		Code: codeMultiReplacement,
		Msg:  "multi update only works with $ operators",
	}
	// ErrIndexFieldName is returned when an index is created without a
	// field name.
	ErrIndexFieldName = errors.New("cannot create an index without a fieldName")
	// ErrRemoveIDIndex is returned when removing the identifier index.
	ErrRemoveIDIndex = errors.New("cannot remove the _id index")
)

// Collection implements [domain.Collection]. Every operation holds the
// collection lock from candidate lookup until the indexes are updated.
type Collection struct {
	executor        *ctxsync.Mutex
	indexes         map[string]domain.Index
	indexFactory    domain.IndexFactory
	documentFactory domain.DocumentFactory
	comparer        domain.Comparer
	fieldNavigator  domain.FieldNavigator
	matcher         domain.Matcher
	modifier        domain.Modifier
	decoder         domain.Decoder
	idGenerator     domain.IDGenerator
}

type candidate struct {
	doc      domain.Document
	position int
}

// NewCollection returns a new implementation of [domain.Collection].
func NewCollection(options ...Option) (domain.Collection, error) {
	c := &Collection{
		executor:        ctxsync.NewMutex(),
		indexFactory:    index.NewIndex,
		documentFactory: data.NewDocument,
		comparer:        comparer.NewComparer(),
		fieldNavigator:  fieldnavigator.NewFieldNavigator(),
		decoder:         decoder.NewDecoder(),
		idGenerator:     idgenerator.NewIDGenerator(),
	}
	for _, option := range options {
		option(c)
	}

	if c.matcher == nil {
		c.matcher = matcher.NewMatcher(
			matcher.WithDocumentFactory(c.documentFactory),
			matcher.WithComparer(c.comparer),
			matcher.WithFieldNavigator(c.fieldNavigator),
		)
	}
	if c.modifier == nil {
		c.modifier = modifier.NewModifier(
			modifier.WithDocumentFactory(c.documentFactory),
			modifier.WithComparer(c.comparer),
			modifier.WithFieldNavigator(c.fieldNavigator),
			modifier.WithMatcher(c.matcher),
			modifier.WithIDGenerator(c.idGenerator),
		)
	}

	idIdx, err := c.newIndex(domain.WithIndexFieldName(data.IDField), domain.WithIndexUnique(true))
	if err != nil {
		return nil, err
	}
	c.indexes = map[string]domain.Index{data.IDField: idIdx}
	return c, nil
}

func (c *Collection) newIndex(options ...domain.IndexOption) (domain.Index, error) {
	options = append(options,
		domain.WithIndexComparer(c.comparer),
		domain.WithIndexFieldNavigator(c.fieldNavigator),
	)
	return c.indexFactory(options...)
}

// Insert implements [domain.Collection]. Either every document is inserted or
// none is.
func (c *Collection) Insert(ctx context.Context, newDocs ...any) ([]domain.Document, error) {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.executor.Unlock()

	if len(newDocs) == 0 {
		return nil, nil
	}
	docs, err := c.prepareDocumentsForInsertion(newDocs)
	if err != nil {
		return nil, err
	}
	// a partial insertion would leave the indexes out of sync
	ctx = context.WithoutCancel(ctx)
	if err := c.insertInCache(ctx, docs); err != nil {
		return nil, err
	}
	return c.cloneDocs(docs...), nil
}

func (c *Collection) prepareDocumentsForInsertion(newDocs []any) ([]domain.Document, error) {
	res := make([]domain.Document, len(newDocs))
	for n, newDoc := range newDocs {
		doc, err := c.documentFactory(newDoc)
		if err != nil {
			return nil, err
		}
		if doc, err = c.prepareDocument(doc); err != nil {
			return nil, err
		}
		res[n] = doc
	}
	return res, nil
}

// prepareDocument gives doc an identifier, moves it to the first position and
// checks every field name.
func (c *Collection) prepareDocument(doc domain.Document) (domain.Document, error) {
	var id any
	if doc.Has(data.IDField) {
		id = doc.ID()
	} else {
		var err error
		if id, err = c.idGenerator.GenerateID(); err != nil {
			return nil, err
		}
	}
	switch id.(type) {
	case []any:
		return nil, domain.NewError(domain.ErrConstraintViolated, domain.CodeBadValue, "can't use an array for _id")
	case bson.Regex, *regexp.Regexp:
		return nil, domain.NewError(domain.ErrConstraintViolated, domain.CodeBadValue, "can't use a regex for _id")
	}

	res, err := c.documentFactory(nil)
	if err != nil {
		return nil, err
	}
	res.Set(data.IDField, id)
	for k, v := range doc.Iter() {
		if k != data.IDField {
			res.Set(k, v)
		}
	}
	if err := c.checkDocument(res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Collection) checkDocument(doc domain.Document) error {
	for k, v := range doc.Iter() {
		if err := c.checkFieldName(k); err != nil {
			return err
		}
		if err := c.checkValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) checkValue(v any) error {
	switch t := v.(type) {
	case domain.Document:
		return c.checkDocument(t)
	case []any:
		for _, item := range t {
			if err := c.checkValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collection) checkFieldName(k string) error {
	if strings.HasPrefix(k, "$") {
		return domain.NewError(domain.ErrConstraintViolated, domain.CodeDollarPrefixedFieldName, "field names cannot begin with the $ character: %s", k)
	}
	if strings.ContainsRune(k, '.') {
		return domain.NewError(domain.ErrConstraintViolated, domain.CodeBadValue, "field names cannot contain a '.': %s", k)
	}
	return nil
}

func (c *Collection) insertInCache(ctx context.Context, docs []domain.Document) error {
	var failingIndex int
	var err error

	for i, doc := range docs {
		if err = c.addToIndexes(ctx, doc); err != nil {
			failingIndex = i
			break
		}
	}

	if err != nil {
		for i := range failingIndex {
			if removeErr := c.removeFromIndexes(ctx, docs[i]); removeErr != nil {
				return errors.Join(err, removeErr)
			}
		}
		return err
	}
	return nil
}

func (c *Collection) addToIndexes(ctx context.Context, doc domain.Document) error {
	var failingIndex int
	var err error
	keys := slices.Sorted(maps.Keys(c.indexes))

	for i, key := range keys {
		if err = c.indexes[key].Insert(ctx, doc); err != nil {
			failingIndex = i
			break
		}
	}

	if err != nil {
		for i := range failingIndex {
			if removeErr := c.indexes[keys[i]].Remove(ctx, doc); removeErr != nil {
				return errors.Join(err, removeErr)
			}
		}
		return err
	}
	return nil
}

func (c *Collection) removeFromIndexes(ctx context.Context, doc domain.Document) error {
	for _, idx := range c.indexes {
		if err := idx.Remove(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Find implements [domain.Collection]. Documents are returned in identifier
// order unless an index supplied the candidates, in which case they follow
// that index's key order.
func (c *Collection) Find(ctx context.Context, query any) ([]domain.Document, error) {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return nil, err
	}
	defer c.executor.Unlock()

	found, err := c.find(query)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Document, len(found))
	for n, f := range found {
		res[n] = data.CloneDocument(f.doc)
	}
	return res, nil
}

// FindInto implements [domain.Collection].
func (c *Collection) FindInto(ctx context.Context, query any, target any) error {
	docs, err := c.Find(ctx, query)
	if err != nil {
		return err
	}
	src := make([]any, len(docs))
	for n, doc := range docs {
		src[n] = doc
	}
	return c.decoder.Decode(src, target)
}

// Count implements [domain.Collection].
func (c *Collection) Count(ctx context.Context, query any) (int, error) {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return 0, err
	}
	defer c.executor.Unlock()

	found, err := c.find(query)
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

func (c *Collection) queryDocument(query any) (domain.Document, error) {
	queryDoc, err := c.documentFactory(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedQuery, err)
	}
	return queryDoc, nil
}

func (c *Collection) find(query any) ([]candidate, error) {
	queryDoc, err := c.queryDocument(query)
	if err != nil {
		return nil, err
	}

	// compiles the query so malformed queries fail on empty collections too
	empty, err := c.documentFactory(nil)
	if err != nil {
		return nil, err
	}
	if _, err := c.matcher.Match(empty, queryDoc); err != nil {
		return nil, err
	}

	docs, err := c.getCandidates(queryDoc)
	if err != nil {
		return nil, err
	}

	var res []candidate
	for _, doc := range docs {
		m, err := c.matcher.MatchPosition(doc, queryDoc)
		if err != nil {
			return nil, err
		}
		if m.Matched {
			res = append(res, candidate{doc: doc, position: m.Position})
		}
	}
	return res, nil
}

func (c *Collection) getAllData() []domain.Document {
	return slices.Collect(c.indexes[data.IDField].GetAll())
}

// getCandidates returns the documents that may match query. Indexes are only
// used for literal scalar equality and $in lists of scalars on paths without
// numeric segments, every other query reads the whole collection.
func (c *Collection) getCandidates(query domain.Document) ([]domain.Document, error) {
	for k, v := range query.Iter() {
		idx, ok := c.indexes[k]
		if !ok || !c.indexablePath(k) {
			continue
		}
		if c.indexableValue(v) {
			return idx.GetMatching(v)
		}
		doc, ok := v.(domain.Document)
		if !ok || doc.Len() != 1 || !doc.Has("$in") {
			continue
		}
		list, ok := doc.Get("$in").([]any)
		if ok && !slices.ContainsFunc(list, func(v any) bool { return !c.indexableValue(v) }) {
			return idx.GetMatching(list...)
		}
	}
	return c.getAllData(), nil
}

func (c *Collection) indexablePath(path string) bool {
	for part := range strings.SplitSeq(path, ".") {
		if _, err := strconv.Atoi(part); err == nil {
			return false
		}
	}
	return true
}

func (c *Collection) indexableValue(v any) bool {
	switch v.(type) {
	case nil, domain.Document, []any, bson.Regex, *regexp.Regexp:
		return false
	default:
		return true
	}
}

// Update implements [domain.Collection]. Every matched document is computed
// before the indexes change, so a failing update changes nothing.
func (c *Collection) Update(ctx context.Context, query any, update any, options ...domain.UpdateOption) (domain.UpdateResult, error) {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return domain.UpdateResult{}, err
	}
	defer c.executor.Unlock()

	var opts domain.UpdateOptions
	for _, option := range options {
		option(&opts)
	}

	updateDoc, err := c.documentFactory(update)
	if err != nil {
		return domain.UpdateResult{}, fmt.Errorf("%w: %w", domain.ErrMalformedUpdate, err)
	}
	if opts.Multi && c.isReplacement(updateDoc) {
		return domain.UpdateResult{}, ErrMultiReplacement
	}

	found, err := c.find(query)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	if !opts.Multi && len(found) > 1 {
		found = found[:1]
	}

	if len(found) == 0 && opts.Upsert {
		return c.upsert(ctx, query, updateDoc, &opts)
	}

	mods := make([]domain.Update, 0, len(found))
	for _, f := range found {
		res, err := c.modifier.Modify(f.doc, updateDoc,
			domain.WithModifyArrayFilters(opts.ArrayFilters),
			domain.WithModifyPosition(f.position),
		)
		if err != nil {
			return domain.UpdateResult{}, err
		}
		if !res.Changed {
			continue
		}
		if err := c.checkDocument(res.NewDoc); err != nil {
			return domain.UpdateResult{}, err
		}
		mods = append(mods, res)
	}

	ctx = context.WithoutCancel(ctx)
	if err := c.updateIndexes(ctx, mods); err != nil {
		return domain.UpdateResult{}, err
	}

	return domain.UpdateResult{Matched: len(found), Modified: len(mods)}, nil
}

func (c *Collection) isReplacement(update domain.Document) bool {
	for k := range update.Keys() {
		return !strings.HasPrefix(k, "$")
	}
	return true
}

func (c *Collection) upsert(ctx context.Context, query any, update domain.Document, opts *domain.UpdateOptions) (domain.UpdateResult, error) {
	queryDoc, err := c.queryDocument(query)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	res, err := c.modifier.Upsert(queryDoc, update, domain.WithModifyArrayFilters(opts.ArrayFilters))
	if err != nil {
		return domain.UpdateResult{}, err
	}
	doc, err := c.prepareDocument(res.NewDoc)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	if err := c.insertInCache(context.WithoutCancel(ctx), []domain.Document{doc}); err != nil {
		return domain.UpdateResult{}, err
	}
	return domain.UpdateResult{UpsertedID: data.Clone(doc.ID())}, nil
}

func (c *Collection) updateIndexes(ctx context.Context, mods []domain.Update) error {
	if len(mods) == 0 {
		return nil
	}

	var failingIndex int
	var err error

	keys := slices.Sorted(maps.Keys(c.indexes))
	for i, key := range keys {
		if err = c.indexes[key].UpdateMultipleDocs(ctx, mods...); err != nil {
			failingIndex = i
			break
		}
	}
	if err != nil {
		for i := range failingIndex {
			if revertErr := c.indexes[keys[i]].RevertMultipleUpdates(ctx, mods...); revertErr != nil {
				err = errors.Join(err, revertErr)
				break
			}
		}
	}
	return err
}

// Remove implements [domain.Collection].
func (c *Collection) Remove(ctx context.Context, query any, options ...domain.RemoveOption) (int, error) {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return 0, err
	}
	defer c.executor.Unlock()

	var opts domain.RemoveOptions
	for _, option := range options {
		option(&opts)
	}

	found, err := c.find(query)
	if err != nil {
		return 0, err
	}
	if !opts.Multi && len(found) > 1 {
		found = found[:1]
	}

	ctx = context.WithoutCancel(ctx)
	for _, f := range found {
		if err := c.removeFromIndexes(ctx, f.doc); err != nil {
			return 0, err
		}
	}
	return len(found), nil
}

// EnsureIndex implements [domain.Collection].
func (c *Collection) EnsureIndex(ctx context.Context, options ...domain.IndexOption) error {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.executor.Unlock()

	var opts domain.IndexOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.FieldName == "" {
		return ErrIndexFieldName
	}
	if _, exists := c.indexes[opts.FieldName]; exists {
		return nil
	}

	idx, err := c.newIndex(
		domain.WithIndexFieldName(opts.FieldName),
		domain.WithIndexUnique(opts.Unique),
		domain.WithIndexSparse(opts.Sparse),
	)
	if err != nil {
		return err
	}
	if err := idx.Insert(context.WithoutCancel(ctx), c.getAllData()...); err != nil {
		return err
	}
	c.indexes[opts.FieldName] = idx
	return nil
}

// RemoveIndex implements [domain.Collection]. Removing an index that does not
// exist is a no-op.
func (c *Collection) RemoveIndex(ctx context.Context, fieldName string) error {
	if err := c.executor.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.executor.Unlock()

	if fieldName == data.IDField {
		return ErrRemoveIDIndex
	}
	delete(c.indexes, fieldName)
	return nil
}

func (c *Collection) cloneDocs(docs ...domain.Document) []domain.Document {
	res := make([]domain.Document, len(docs))
	for n, doc := range docs {
		res[n] = data.CloneDocument(doc)
	}
	return res
}
