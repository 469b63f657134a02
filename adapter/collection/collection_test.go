package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/data"
	"github.com/vinicius-lino-figueiredo/gemongo/adapter/index"
	"github.com/vinicius-lino-figueiredo/gemongo/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type M = map[string]any

type CollectionTestSuite struct {
	suite.Suite
	ctx context.Context
	c   *Collection
}

func (s *CollectionTestSuite) SetupTest() {
	s.ctx = context.Background()
	c, err := NewCollection()
	s.Require().NoError(err)
	s.c = c.(*Collection)
}

func (s *CollectionTestSuite) parse(j string) domain.Document {
	doc, err := data.ParseJSON([]byte(j))
	s.Require().NoError(err)
	return doc
}

func (s *CollectionTestSuite) insert(docs ...string) {
	values := make([]any, len(docs))
	for n, doc := range docs {
		values[n] = s.parse(doc)
	}
	_, err := s.c.Insert(s.ctx, values...)
	s.Require().NoError(err)
}

// all returns the stored documents as relaxed extended JSON.
func (s *CollectionTestSuite) all(query string) []string {
	docs, err := s.c.Find(s.ctx, s.parse(query))
	s.Require().NoError(err)
	res := make([]string, len(docs))
	for n, doc := range docs {
		b, err := data.MarshalJSON(doc)
		s.Require().NoError(err)
		res[n] = string(b)
	}
	return res
}

func (s *CollectionTestSuite) TestInsert() {
	docs, err := s.c.Insert(s.ctx, M{"a": 1}, s.parse(`{"b": 2, "_id": "x"}`))
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.IsType(bson.ObjectID{}, docs[0].ID())

	first := ""
	for k := range docs[1].Keys() {
		first = k
		break
	}
	s.Equal("_id", first)

	// returned documents are copies
	docs[1].Set("b", 3)
	s.Equal([]string{`{"_id":"x","b":2}`}, s.all(`{"_id": "x"}`))

	docs, err = s.c.Insert(s.ctx)
	s.NoError(err)
	s.Empty(docs)
}

// A batch with a duplicate identifier inserts nothing.
func (s *CollectionTestSuite) TestInsertDuplicate() {
	s.insert(`{"_id": 1}`)

	_, err := s.c.Insert(s.ctx, M{"_id": 2}, M{"_id": 3}, M{"_id": 1.0})
	s.ErrorIs(err, domain.ErrConstraintViolated)
	s.ErrorAs(err, new(index.ErrDuplicateKey))
	s.Equal(domain.CodeDuplicateKey, domain.CodeOf(err))

	count, err := s.c.Count(s.ctx, nil)
	s.NoError(err)
	s.Equal(1, count)
}

func (s *CollectionTestSuite) TestInsertInvalid() {
	for _, doc := range []string{
		`{"$a": 1}`,
		`{"a": {"$b": 1}}`,
		`{"a": [{"b.c": 1}]}`,
		`{"_id": [1]}`,
		`{"_id": {"$regex": "a", "$options": ""}}`,
	} {
		_, err := s.c.Insert(s.ctx, s.parse(doc))
		s.ErrorIs(err, domain.ErrConstraintViolated, doc)
	}

	_, err := s.c.Insert(s.ctx, 5)
	s.Error(err)
}

func (s *CollectionTestSuite) TestFind() {
	s.insert(
		`{"_id": 3, "a": [1, 2], "b": "x"}`,
		`{"_id": 1, "a": 2, "b": "y"}`,
		`{"_id": 2, "a": 3}`,
	)

	s.Equal([]string{
		`{"_id":1,"a":2,"b":"y"}`,
		`{"_id":2,"a":3}`,
		`{"_id":3,"a":[1,2],"b":"x"}`,
	}, s.all(`{}`))
	s.Equal([]string{`{"_id":1,"a":2,"b":"y"}`, `{"_id":3,"a":[1,2],"b":"x"}`}, s.all(`{"a": 2}`))
	s.Equal([]string{`{"_id":2,"a":3}`}, s.all(`{"_id": {"$in": [2, 5]}}`))
	s.Equal([]string{`{"_id":2,"a":3}`}, s.all(`{"_id": 2.0}`))
	s.Empty(s.all(`{"_id": 2, "a": 1}`))

	count, err := s.c.Count(s.ctx, M{"b": M{"$exists": true}})
	s.NoError(err)
	s.Equal(2, count)

	_, err = s.c.Find(s.ctx, M{"a": M{"$foo": 1}})
	s.ErrorIs(err, domain.ErrMalformedQuery)

	_, err = s.c.Find(s.ctx, 5)
	s.ErrorIs(err, domain.ErrMalformedQuery)
}

// Queries answered by a secondary index give the same documents as a scan.
func (s *CollectionTestSuite) TestFindWithIndex() {
	s.insert(
		`{"_id": 1, "tags": [{"n": "a"}, {"n": "b"}]}`,
		`{"_id": 2, "tags": {"n": "a"}}`,
		`{"_id": 3, "tags": {"n": "c"}}`,
		`{"_id": 4}`,
	)
	before := s.all(`{"tags.n": "a"}`)
	s.Len(before, 2)

	s.Require().NoError(s.c.EnsureIndex(s.ctx, domain.WithIndexFieldName("tags.n")))
	s.Require().NoError(s.c.EnsureIndex(s.ctx, domain.WithIndexFieldName("tags.n")))
	s.Equal(before, s.all(`{"tags.n": "a"}`))
	s.Len(s.all(`{"tags.n": {"$in": ["a", "c"]}}`), 3)
	s.Equal([]string{`{"_id":4}`}, s.all(`{"tags.n": null}`))

	s.NoError(s.c.RemoveIndex(s.ctx, "tags.n"))
	s.NoError(s.c.RemoveIndex(s.ctx, "tags.n"))
	s.ErrorIs(s.c.RemoveIndex(s.ctx, "_id"), ErrRemoveIDIndex)
}

func (s *CollectionTestSuite) TestFindInto() {
	s.insert(`{"_id": 1, "name": "a"}`, `{"_id": 2, "name": "b"}`)

	type item struct {
		ID   int    `gemongo:"_id"`
		Name string `gemongo:"name"`
	}
	var items []item
	s.Require().NoError(s.c.FindInto(s.ctx, nil, &items))
	s.Equal([]item{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, items)

	var maps []M
	s.Require().NoError(s.c.FindInto(s.ctx, M{"name": "b"}, &maps))
	s.Equal([]M{{"_id": int32(2), "name": "b"}}, maps)

	s.ErrorIs(s.c.FindInto(s.ctx, nil, items), domain.ErrNonPointer)
}

func (s *CollectionTestSuite) TestUpdate() {
	s.insert(`{"_id": 1, "a": 1}`, `{"_id": 2, "a": 1}`, `{"_id": 3, "a": 2}`)

	res, err := s.c.Update(s.ctx, M{"a": 1}, M{"$inc": M{"b": 1}})
	s.Require().NoError(err)
	s.Equal(domain.UpdateResult{Matched: 1, Modified: 1}, res)

	res, err = s.c.Update(s.ctx, M{"a": 1}, M{"$set": M{"c": true}}, domain.WithUpdateMulti(true))
	s.Require().NoError(err)
	s.Equal(domain.UpdateResult{Matched: 2, Modified: 2}, res)

	res, err = s.c.Update(s.ctx, M{"a": 1}, M{"$set": M{"c": true}}, domain.WithUpdateMulti(true))
	s.Require().NoError(err)
	s.Equal(domain.UpdateResult{Matched: 2, Modified: 0}, res)

	res, err = s.c.Update(s.ctx, M{"_id": 3}, M{"z": 1})
	s.Require().NoError(err)
	s.Equal(1, res.Modified)

	s.Equal([]string{
		`{"_id":1,"a":1,"b":1,"c":true}`,
		`{"_id":2,"a":1,"c":true}`,
		`{"_id":3,"z":1}`,
	}, s.all(`{}`))
}

func (s *CollectionTestSuite) TestUpdatePositional() {
	s.insert(`{"_id": 1, "grades": [{"g": 80}, {"g": 95}, {"g": 70}]}`)

	_, err := s.c.Update(s.ctx, M{"grades.g": M{"$gt": 90}}, M{"$set": M{"grades.$.top": true}})
	s.Require().NoError(err)
	s.Equal([]string{`{"_id":1,"grades":[{"g":80},{"g":95,"top":true},{"g":70}]}`}, s.all(`{}`))

	_, err = s.c.Update(s.ctx, M{}, M{"$inc": M{"grades.$[low].g": 5}},
		domain.WithUpdateArrayFilters(M{"low.g": M{"$lt": 90}}),
	)
	s.Require().NoError(err)
	s.Equal([]string{`{"_id":1,"grades":[{"g":85},{"g":95,"top":true},{"g":75}]}`}, s.all(`{}`))
}

func (s *CollectionTestSuite) TestUpsert() {
	res, err := s.c.Update(s.ctx, M{"_id": M{"$in": A{7, 8}}, "a": 1}, M{"$set": M{"b": 2}}, domain.WithUpsert(true))
	s.Require().NoError(err)
	s.Equal(domain.UpdateResult{UpsertedID: int64(7)}, res)
	s.Equal([]string{`{"_id":7,"a":1,"b":2}`}, s.all(`{}`))

	res, err = s.c.Update(s.ctx, M{"a": 1}, M{"$set": M{"b": 3}}, domain.WithUpsert(true))
	s.Require().NoError(err)
	s.Equal(domain.UpdateResult{Matched: 1, Modified: 1}, res)

	res, err = s.c.Update(s.ctx, M{"a": 5}, M{"c": 1}, domain.WithUpsert(true))
	s.Require().NoError(err)
	s.IsType(bson.ObjectID{}, res.UpsertedID)

	count, err := s.c.Count(s.ctx, nil)
	s.NoError(err)
	s.Equal(2, count)
}

type A = []any

// A failing update leaves every document as it was.
func (s *CollectionTestSuite) TestUpdateAllOrNothing() {
	s.insert(`{"_id": 1, "a": 1}`, `{"_id": 2, "a": "x"}`)

	_, err := s.c.Update(s.ctx, nil, M{"$inc": M{"a": 1}}, domain.WithUpdateMulti(true))
	s.ErrorIs(err, domain.ErrTypeMismatch)

	_, err = s.c.Update(s.ctx, nil, M{"a": 1}, domain.WithUpdateMulti(true))
	s.ErrorIs(err, ErrMultiReplacement)
	s.Equal(10158, domain.CodeOf(err))

	_, err = s.c.Update(s.ctx, nil, M{"$set": M{"b": M{"$c": 1}}}, domain.WithUpdateMulti(true))
	s.ErrorIs(err, domain.ErrConstraintViolated)

	s.Require().NoError(s.c.EnsureIndex(s.ctx, domain.WithIndexFieldName("u"), domain.WithIndexUnique(true), domain.WithIndexSparse(true)))
	_, err = s.c.Update(s.ctx, nil, M{"$set": M{"u": 1}}, domain.WithUpdateMulti(true))
	s.ErrorIs(err, domain.ErrConstraintViolated)

	s.Equal([]string{`{"_id":1,"a":1}`, `{"_id":2,"a":"x"}`}, s.all(`{}`))
	s.Empty(s.all(`{"u": 1}`))
}

func (s *CollectionTestSuite) TestRemove() {
	s.insert(`{"_id": 1, "a": 1}`, `{"_id": 2, "a": 1}`, `{"_id": 3, "a": 2}`)

	n, err := s.c.Remove(s.ctx, M{"a": 1})
	s.NoError(err)
	s.Equal(1, n)

	n, err = s.c.Remove(s.ctx, nil, domain.WithRemoveMulti(true))
	s.NoError(err)
	s.Equal(2, n)
	s.Empty(s.all(`{}`))

	s.insert(`{"_id": 1}`)
}

func (s *CollectionTestSuite) TestEnsureIndex() {
	s.ErrorIs(s.c.EnsureIndex(s.ctx), ErrIndexFieldName)

	s.insert(`{"_id": 1, "a": 1}`, `{"_id": 2, "a": 1}`)
	err := s.c.EnsureIndex(s.ctx, domain.WithIndexFieldName("a"), domain.WithIndexUnique(true))
	s.ErrorIs(err, domain.ErrConstraintViolated)
	s.NotContains(s.c.indexes, "a")

	s.Error(s.c.EnsureIndex(s.ctx, domain.WithIndexFieldName("a..b")))

	s.NoError(s.c.EnsureIndex(s.ctx, domain.WithIndexFieldName("a")))
	_, err = s.c.Insert(s.ctx, M{"a": 1})
	s.NoError(err)
}

func (s *CollectionTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.c.Insert(ctx, M{})
	s.ErrorIs(err, context.Canceled)
	_, err = s.c.Find(ctx, nil)
	s.ErrorIs(err, context.Canceled)
	_, err = s.c.Count(ctx, nil)
	s.ErrorIs(err, context.Canceled)
	_, err = s.c.Update(ctx, nil, M{})
	s.ErrorIs(err, context.Canceled)
	_, err = s.c.Remove(ctx, nil)
	s.ErrorIs(err, context.Canceled)
	s.ErrorIs(s.c.EnsureIndex(ctx), context.Canceled)
	s.ErrorIs(s.c.RemoveIndex(ctx, "a"), context.Canceled)
}

func TestCollectionTestSuite(t *testing.T) {
	suite.Run(t, new(CollectionTestSuite))
}
