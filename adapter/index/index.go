// Package index contains the default [domain.Index] implementation, an AVL
// tree keyed by the values of a single document field.
package index

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
)

// ErrDuplicateKey is returned when a unique index already holds a document
// with the same key.
type ErrDuplicateKey struct {
	Field string
	Key   any
	err   error
}

// Error implements [error].
func (e ErrDuplicateKey) Error() string {
	text, _ := data.MarshalJSONValue(e.Key)
	return fmt.Sprintf("E11000 duplicate key error dup key: { %s: %s }", e.Field, text)
}

// Unwrap returns [domain.ErrConstraintViolated] and the tree error.
func (e ErrDuplicateKey) Unwrap() []error {
	return []error{domain.ErrConstraintViolated, e.err}
}

// Code returns the protocol error code.
func (e ErrDuplicateKey) Code() int { return domain.CodeDuplicateKey }

// Index implements [domain.Index].
type Index struct {
	fieldName string
	addr      []string
	unique    bool
	sparse    bool
	// Exported to allow testing. Should not be a problem because Index is
	// used as interface.
	Tree        bst.BST[any, domain.Document]
	comparer    domain.Comparer
	bstComparer bst.Comparer[any, domain.Document]
}

// NewIndex returns a new implementation of domain.Index.
func NewIndex(options ...domain.IndexOption) (domain.Index, error) {
	opts := domain.IndexOptions{
		Comparer:       comparer.NewComparer(),
		FieldNavigator: fieldnavigator.NewFieldNavigator(),
	}
	for _, option := range options {
		option(&opts)
	}

	addr, err := opts.FieldNavigator.GetAddress(opts.FieldName)
	if err != nil {
		return nil, err
	}

	bstComparer := NewBSTComparer(opts.Comparer)

	return &Index{
		fieldName:   opts.FieldName,
		addr:        addr,
		unique:      opts.Unique,
		sparse:      opts.Sparse,
		Tree:        avl.NewBST(opts.Unique, 8, bstComparer),
		comparer:    opts.Comparer,
		bstComparer: bstComparer,
	}, nil
}

// FieldName implements [domain.Index].
func (i *Index) FieldName() string {
	return i.fieldName
}

// Sparse implements [domain.Index].
func (i *Index) Sparse() bool {
	return i.sparse
}

// Unique implements [domain.Index].
func (i *Index) Unique() bool {
	return i.unique
}

// getKeys returns the distinct keys of doc. Each element of an array is a
// separate key, and a missing field is a null key unless the index is sparse.
func (i *Index) getKeys(doc domain.Document) ([]any, error) {
	values, found := i.collect(doc, i.addr)
	if !found {
		if i.sparse {
			return nil, nil
		}
		return []any{nil}, nil
	}

	keys := make([]any, 0, len(values))
	for _, v := range values {
		if l, ok := v.([]any); ok {
			keys = append(keys, l...)
			continue
		}
		keys = append(keys, v)
	}

	var err error
	slices.SortFunc(keys, func(a, b any) int {
		comp, compErr := i.comparer.Compare(a, b)
		if compErr != nil && err == nil {
			err = compErr
		}
		return comp
	})
	if err != nil {
		return nil, err
	}
	keys = slices.CompactFunc(keys, func(a, b any) bool {
		comp, _ := i.comparer.Compare(a, b)
		return comp == 0
	})
	return keys, nil
}

// collect reads the values under addr. Non-numeric segments are applied to
// every document inside an array.
func (i *Index) collect(v any, addr []string) ([]any, bool) {
	if len(addr) == 0 {
		return []any{v}, true
	}
	switch t := v.(type) {
	case domain.Document:
		if !t.Has(addr[0]) {
			return nil, false
		}
		return i.collect(t.Get(addr[0]), addr[1:])
	case []any:
		if n, err := strconv.Atoi(addr[0]); err == nil {
			if n < 0 || n >= len(t) {
				return nil, false
			}
			return i.collect(t[n], addr[1:])
		}
		var res []any
		found := false
		for _, item := range t {
			if _, ok := item.(domain.Document); !ok {
				continue
			}
			values, ok := i.collect(item, addr)
			res = append(res, values...)
			found = found || ok
		}
		return res, found
	default:
		return nil, false
	}
}

// Insert implements [domain.Index]. Either every document is inserted or
// none is.
func (i *Index) Insert(ctx context.Context, docs ...domain.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	type kv struct {
		key any
		doc domain.Document
	}

	keys := make([]kv, 0, len(docs))

	var err error
DocInsertion:
	for _, d := range docs {
		var l []any
		if l, err = i.getKeys(d); err != nil {
			break
		}

		for _, k := range l {
			if err = i.Tree.Insert(k, d); err != nil {
				if e := new(bst.ErrUniqueViolated); errors.As(err, e) {
					err = ErrDuplicateKey{Field: i.fieldName, Key: k, err: err}
				}
				break DocInsertion
			}
			keys = append(keys, kv{key: k, doc: d})
		}
	}
	if err != nil {
		nErrs := make([]error, 1, len(keys)+1)
		nErrs[0] = err
		for _, v := range keys {
			if err := i.Tree.Delete(v.key, &v.doc); err != nil {
				nErrs = append(nErrs, err)
			}
		}
		if len(nErrs) > 1 {
			return errors.Join(nErrs...)
		}
		return err
	}
	return nil
}

// Remove implements [domain.Index].
func (i *Index) Remove(ctx context.Context, docs ...domain.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	errs := make([]error, 0, len(docs))
	for _, d := range docs {
		keys, err := i.getKeys(d)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := i.Tree.Delete(k, &d); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Update implements [domain.Index].
func (i *Index) Update(ctx context.Context, oldDoc, newDoc domain.Document) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := i.Remove(ctx, oldDoc); err != nil {
		return err
	}
	if err := i.Insert(ctx, newDoc); err != nil {
		_ = i.Insert(context.WithoutCancel(ctx), oldDoc)
		return err
	}
	return nil
}

// UpdateMultipleDocs implements [domain.Index].
func (i *Index) UpdateMultipleDocs(ctx context.Context, pairs ...domain.Update) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var failingIndex int
	var err error

	subCtx := context.WithoutCancel(ctx)
	for _, pair := range pairs {
		if err = i.Remove(subCtx, pair.OldDoc); err != nil {
			break
		}
	}

	if err == nil {
		for n, pair := range pairs {
			if err = i.Insert(subCtx, pair.NewDoc); err != nil {
				failingIndex = n
				break
			}
		}
	}

	if err != nil {
		for n := range failingIndex {
			_ = i.Remove(subCtx, pairs[n].NewDoc)
		}
		for _, pair := range pairs {
			_ = i.Insert(subCtx, pair.OldDoc)
		}
	}

	return err
}

// RevertMultipleUpdates implements [domain.Index].
func (i *Index) RevertMultipleUpdates(ctx context.Context, pairs ...domain.Update) error {
	revert := make([]domain.Update, len(pairs))
	for n, pair := range pairs {
		revert[n] = domain.Update{OldDoc: pair.NewDoc, NewDoc: pair.OldDoc}
	}
	return i.UpdateMultipleDocs(ctx, revert...)
}

// GetMatching implements [domain.Index]. Documents are returned in key order,
// each at most once.
func (i *Index) GetMatching(value ...any) ([]domain.Document, error) {
	values := slices.Clone(value)
	var err error
	slices.SortFunc(values, func(a, b any) int {
		comp, compErr := i.comparer.Compare(a, b)
		if compErr != nil && err == nil {
			err = compErr
		}
		return comp
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.Document]struct{})
	var res []domain.Document
	for _, v := range values {
		found, err := i.Tree.Search(v)
		if err != nil {
			return nil, err
		}
		if found == nil {
			continue
		}
		for _, doc := range found.Values() {
			if _, ok := seen[doc]; ok {
				continue
			}
			seen[doc] = struct{}{}
			res = append(res, doc)
		}
	}
	return res, nil
}

// GetAll implements [domain.Index]. A document indexed under several keys is
// yielded once per key.
func (i *Index) GetAll() iter.Seq[domain.Document] {
	return i.Tree.GetAll()
}

// GetNumberOfKeys implements [domain.Index].
func (i *Index) GetNumberOfKeys() int {
	return i.Tree.GetNumberOfKeys()
}
