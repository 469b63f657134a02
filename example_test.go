package gemongo_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/vinicius-lino-figueiredo/gemongo"
)

type M = map[string]any

func parse(j string) gemongo.Document {
	doc, err := gemongo.ParseDocument([]byte(j))
	if err != nil {
		panic(err)
	}
	return doc
}

func ExampleEngine_Match() {
	// An Engine holds no data. It only evaluates queries and updates, so
	// a single instance can be shared by the whole program.
	e := gemongo.NewEngine()

	doc := parse(`{"name": "Ryu", "moves": [{"n": "hadoken", "dmg": 60}, {"n": "shoryuken", "dmg": 120}]}`)

	// Queries can be documents or anything that can be converted into
	// one, such as maps and structs.
	ok, _ := e.Match(doc, M{"moves.dmg": M{"$gt": 100}})
	fmt.Println(ok)

	// MatchPosition also tells which array element made the query match.
	// That is the index the positional operator $ refers to.
	res, _ := e.MatchPosition(doc, M{"moves.n": "shoryuken"})
	fmt.Println(res.Matched, res.Position)

	// Output:
	// true
	// true 1
}

func ExampleEngine_Modify() {
	e := gemongo.NewEngine()

	doc := parse(`{"_id": 1, "grades": [85, 92, 78]}`)
	res, _ := e.MatchPosition(doc, M{"grades": M{"$gte": 90}})

	// Modify never changes the given document. The updated version is
	// returned as NewDoc.
	upd, err := e.Modify(doc, parse(`{"$set": {"grades.$": 100}, "$inc": {"views": 1}}`),
		gemongo.WithPosition(res.Position),
	)
	if err != nil {
		panic(err)
	}
	fmt.Println(upd.Changed)
	fmt.Println(upd.NewDoc)
	fmt.Println(doc)

	// Output:
	// true
	// {"_id":1,"grades":[85,100,78],"views":1}
	// {"_id":1,"grades":[85,92,78]}
}

func ExampleEngine_Modify_arrayFilters() {
	e := gemongo.NewEngine()

	doc := parse(`{"items": [{"q": 1}, {"q": 7}, {"q": 9}]}`)

	// Every identifier used in the update must be declared exactly once in
	// the array filters.
	upd, err := e.Modify(doc, parse(`{"$set": {"items.$[big].flag": true}}`),
		gemongo.WithArrayFilters(M{"big.q": M{"$gt": 5}}),
	)
	if err != nil {
		panic(err)
	}
	fmt.Println(upd.NewDoc)

	// Output:
	// {"items":[{"q":1},{"q":7,"flag":true},{"q":9,"flag":true}]}
}

func ExampleEngine_Upsert() {
	e := gemongo.NewEngine()

	// Equality fields of the query are copied into the new document,
	// operator expressions are not. $setOnInsert only applies here.
	upd, err := e.Upsert(
		parse(`{"_id": 7, "sku": "abc", "qty": {"$gt": 5}}`),
		parse(`{"$set": {"price": 10}, "$setOnInsert": {"created": true}}`),
	)
	if err != nil {
		panic(err)
	}
	fmt.Println(upd.NewDoc)

	// Output:
	// {"_id":7,"sku":"abc","price":10,"created":true}
}

func ExampleEngine_Compare() {
	e := gemongo.NewEngine()

	// Numbers are compared by value regardless of their width.
	c, _ := e.Compare(int32(5), 5.0)
	fmt.Println(c)

	// Values of different kinds follow the type order: null, numbers,
	// strings, documents, arrays, binary data, object ids, booleans,
	// dates and regular expressions.
	c, _ = e.Compare("a", 1)
	fmt.Println(c)
	c, _ = e.Compare(nil, false)
	fmt.Println(c)

	// Output:
	// 0
	// 1
	// -1
}

func ExampleEngine_NewCollection() {
	e := gemongo.NewEngine()
	ctx := context.Background()

	coll, _ := e.NewCollection()
	_, _ = coll.Insert(ctx,
		parse(`{"_id": 1, "kind": "fruit", "name": "apple"}`),
		parse(`{"_id": 2, "kind": "veg", "name": "leek"}`),
		parse(`{"_id": 3, "kind": "fruit", "name": "fig"}`),
	)

	// Without WithUpdateMulti only the first matching document would be
	// updated.
	res, _ := coll.Update(ctx, M{"kind": "fruit"}, M{"$set": M{"ripe": true}},
		gemongo.WithUpdateMulti(true),
	)
	fmt.Println(res.Matched, res.Modified)

	found, _ := coll.Find(ctx, M{"ripe": true})
	for _, doc := range found {
		fmt.Println(doc)
	}

	// Output:
	// 2 2
	// {"_id":1,"kind":"fruit","name":"apple","ripe":true}
	// {"_id":3,"kind":"fruit","name":"fig","ripe":true}
}

func ExampleErrorCode() {
	e := gemongo.NewEngine()

	// Every error caused by the input wraps one of the error kinds, and
	// carries the code a server would report.
	_, err := e.Modify(M{"a": 1}, M{"$set": M{"a": 2}, "b": 1})
	fmt.Println(errors.Is(err, gemongo.ErrMalformedUpdate), gemongo.ErrorCode(err))

	_, err = e.Match(M{}, M{"a": M{"$foo": 1}})
	fmt.Println(errors.Is(err, gemongo.ErrMalformedQuery))

	// Output:
	// true 9
	// true
}
