package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/internal/adapter/memstore"
	"github.com/seamdb/seam/internal/adapter/normalizer"
	"github.com/seamdb/seam/pkg/doc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

var ctx = context.Background()

type idGeneratorMock struct{ mock.Mock }

func (m *idGeneratorMock) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type CollectionTestSuite struct {
	suite.Suite
	store *memstore.Store
	col   *Collection
}

func (s *CollectionTestSuite) SetupTest() {
	s.store = memstore.New()
	col, err := NewCollection(s.store, "people")
	s.NoError(err)
	s.col = col
}

func (s *CollectionTestSuite) seedPeople() doc.List {
	docs, err := s.col.Insert(ctx,
		doc.M{"name": "Bob", "age": 11},
		doc.M{"name": "Alice", "age": 101},
		doc.M{"name": "Chris", "age": 12},
		doc.M{"name": "Paul", "age": 13},
		doc.M{"name": "Waldo", "age": 14},
	)
	s.NoError(err)
	return docs
}

func (s *CollectionTestSuite) TestConstructorValidation() {
	var cfg *domain.ErrConfiguration
	_, err := NewCollection(nil, "people")
	s.ErrorAs(err, &cfg)
	_, err = NewCollection(s.store, "")
	s.ErrorAs(err, &cfg)
}

func (s *CollectionTestSuite) TestInsertAssignsBothIdentifiers() {
	docs := s.seedPeople()
	s.Len(docs, 5)
	seen := map[string]bool{}
	for _, d := range docs {
		s.NotNil(d.ID())
		s.NotEmpty(d.AppID())
		s.False(seen[d.AppID()])
		seen[d.AppID()] = true
	}
}

func (s *CollectionTestSuite) TestInsertKeepsCallerIdentifiers() {
	docs, err := s.col.Insert(ctx, doc.M{"id": "mine", "name": "Bob"})
	s.NoError(err)
	s.Equal("mine", docs[0].AppID())
}

func (s *CollectionTestSuite) TestInsertRequiresDocuments() {
	_, err := s.col.Insert(ctx)
	s.ErrorIs(err, domain.ErrNoDocuments)
}

func (s *CollectionTestSuite) TestInsertAcceptsStructs() {
	type person struct {
		Name string `seam:"name"`
		Age  int    `seam:"age"`
		Note string `seam:"note,omitzero"`
	}
	docs, err := s.col.Insert(ctx, person{Name: "Bob", Age: 11})
	s.NoError(err)
	s.Equal("Bob", docs[0].Get("name"))
	s.Equal(11, docs[0].Get("age"))
	s.False(docs[0].Has("note"))
}

func (s *CollectionTestSuite) TestDuplicateIdentifierFailsTheBatch() {
	_, err := s.col.Insert(ctx, doc.M{"id": "u1", "name": "first"})
	s.NoError(err)
	_, err = s.col.Insert(ctx, doc.M{"id": "u1", "name": "second"})
	s.ErrorIs(err, domain.ErrConstraintViolated)

	n, err := s.col.Count(ctx, doc.M{"id": "u1"})
	s.NoError(err)
	s.EqualValues(1, n)
}

func (s *CollectionTestSuite) TestFindSortLimitSkip() {
	s.seedPeople()
	docs, err := s.col.Find(ctx, doc.M{},
		domain.WithSort(doc.M{"age": 1}),
		domain.WithSkip(1),
		domain.WithLimit(2),
	)
	s.NoError(err)
	s.Len(docs, 2)
	s.Equal("Chris", docs[0].Get("name"))
	s.Equal("Paul", docs[1].Get("name"))
}

func (s *CollectionTestSuite) TestFindReturnsTheSortedWindow() {
	_, err := s.col.Insert(ctx,
		doc.M{"name": "Bob", "age": 17},
		doc.M{"name": "Alice", "age": 17},
		doc.M{"name": "Chris", "age": 17},
		doc.M{"name": "Paul", "age": 16},
		doc.M{"name": "Waldo", "age": 20},
	)
	s.NoError(err)

	docs, err := s.col.Find(ctx, doc.M{},
		domain.WithSort(doc.M{"name": 1}),
		domain.WithLimit(3),
		domain.WithSkip(2),
	)
	s.NoError(err)
	s.Len(docs, 3)
	s.Equal("Chris", docs[0].Get("name"))
	s.Equal("Paul", docs[1].Get("name"))
	s.Equal("Waldo", docs[2].Get("name"))
}

func (s *CollectionTestSuite) TestFindShorthandDirectives() {
	docs := s.seedPeople()
	target := docs[2]

	s.Run("by application identifier", func() {
		found, err := s.col.Find(ctx, doc.M{"$$": doc.M{"id": target.AppID()}})
		s.NoError(err)
		s.Len(found, 1)
		s.Equal("Chris", found[0].Get("name"))
	})
	s.Run("by identifier list with blanks", func() {
		found, err := s.col.Find(ctx, doc.M{"$$": doc.M{
			"ids": []any{docs[0].AppID(), nil, "", docs[1].AppID()},
		}})
		s.NoError(err)
		s.Len(found, 2)
	})
	s.Run("by store key", func() {
		found, err := s.col.Find(ctx, doc.M{"$$": doc.M{"storeId": target.ID()}})
		s.NoError(err)
		s.Len(found, 1)
		s.Equal("Chris", found[0].Get("name"))
	})
	s.Run("unknown directive key", func() {
		var cfg *domain.ErrConfiguration
		_, err := s.col.Find(ctx, doc.M{"$$": doc.M{"bogus": 1}})
		s.ErrorAs(err, &cfg)
	})
}

func (s *CollectionTestSuite) TestFindOne() {
	s.seedPeople()
	d, err := s.col.FindOne(ctx, doc.M{}, domain.WithSort(doc.M{"age": -1}))
	s.NoError(err)
	s.Equal("Alice", d.Get("name"))

	_, err = s.col.FindOne(ctx, doc.M{"name": "nobody"})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *CollectionTestSuite) TestCountAndSize() {
	s.seedPeople()
	n, err := s.col.Count(ctx, doc.M{"age": doc.M{"$lt": 20}})
	s.NoError(err)
	s.EqualValues(4, n)

	n, err = s.col.Size(ctx, doc.M{"age": doc.M{"$lt": 20}},
		domain.WithSkip(1), domain.WithLimit(2))
	s.NoError(err)
	s.EqualValues(2, n)
}

func (s *CollectionTestSuite) TestUpdateAllRewritesTheMatchedSet() {
	s.seedPeople()
	docs, err := s.col.UpdateAll(ctx,
		doc.M{"age": doc.M{"$lt": 20}},
		doc.M{"$set": doc.M{"hobby": "chess"}},
	)
	s.NoError(err)
	s.Len(docs, 4)
	for _, d := range docs {
		s.Equal("chess", d.Get("hobby"))
		s.NotNil(d.ID())
	}

	n, err := s.col.Count(ctx, doc.M{"hobby": "chess"})
	s.NoError(err)
	s.EqualValues(4, n)
}

func (s *CollectionTestSuite) TestUpdateAllNoMatchWithoutUpsert() {
	s.seedPeople()
	called := false
	col, err := NewCollection(s.store, "empty", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			return hooks.Register(domain.After, domain.ActionUpdate,
				func(context.Context, doc.M) error {
					called = true
					return nil
				})
		}))
	s.NoError(err)

	docs, err := col.UpdateAll(ctx, doc.M{"name": "nobody"}, doc.M{"$set": doc.M{"x": 1}})
	s.NoError(err)
	s.Empty(docs)
	s.False(called)
}

func (s *CollectionTestSuite) TestUpdateAllUpsertsOneDocument() {
	var actions []domain.Action
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			record := func(action domain.Action) domain.Hook {
				return func(context.Context, doc.M) error {
					actions = append(actions, action)
					return nil
				}
			}
			if err := hooks.Register(domain.After, domain.ActionUpdate, record(domain.ActionUpdate)); err != nil {
				return err
			}
			return hooks.Register(domain.After, domain.ActionUpsert, record(domain.ActionUpsert))
		}))
	s.NoError(err)

	docs, err := col.UpdateAll(ctx, doc.M{"name": "Zed"},
		doc.M{"$set": doc.M{"age": 1}}, domain.WithUpsert(true))
	s.NoError(err)
	s.Len(docs, 1)
	s.Equal("Zed", docs[0].Get("name"))
	// only the upsert chain fires, never the update chain
	s.Equal([]domain.Action{domain.ActionUpsert}, actions)
}

func (s *CollectionTestSuite) TestUpdateAllWritesAgainstTheSnapshot() {
	s.seedPeople()
	// the update moves every target out of the original filter; they are
	// still the ones rewritten and returned
	docs, err := s.col.UpdateAll(ctx,
		doc.M{"age": doc.M{"$lt": 20}},
		doc.M{"$inc": doc.M{"age": 100}},
	)
	s.NoError(err)
	s.Len(docs, 4)

	n, err := s.col.Count(ctx, doc.M{"age": doc.M{"$lt": 20}})
	s.NoError(err)
	s.EqualValues(0, n)
}

func (s *CollectionTestSuite) TestUpdateAllProjectionAndSort() {
	s.seedPeople()
	docs, err := s.col.UpdateAll(ctx,
		doc.M{"age": doc.M{"$lt": 20}},
		doc.M{"$set": doc.M{"hobby": "chess"}},
		domain.WithUpdateSort(doc.M{"age": -1}),
		domain.WithUpdateProjection(doc.M{"name": 1}),
	)
	s.NoError(err)
	s.Len(docs, 4)
	s.Equal("Waldo", docs[0].Get("name"))
	s.False(docs[0].Has("hobby"))
}

func (s *CollectionTestSuite) TestUpdateOne() {
	s.seedPeople()

	s.Run("no match", func() {
		_, err := s.col.UpdateOne(ctx, doc.M{"name": "nobody"}, doc.M{"$set": doc.M{"x": 1}})
		s.ErrorIs(err, domain.ErrNotFound)
	})
	s.Run("returns the new document", func() {
		d, err := s.col.UpdateOne(ctx, doc.M{"name": "Bob"}, doc.M{"$inc": doc.M{"age": 1}})
		s.NoError(err)
		s.EqualValues(12, d.Get("age"))
	})
	s.Run("upsert unions filter and update", func() {
		d, err := s.col.UpdateOne(ctx, doc.M{"name": "Zed"},
			doc.M{"$set": doc.M{"age": 55}}, domain.WithUpsert(true))
		s.NoError(err)
		s.Equal("Zed", d.Get("name"))
		s.Equal(55, d.Get("age"))
		s.NotNil(d.ID())
	})
}

func (s *CollectionTestSuite) TestUpdateOneHookExclusivity() {
	var actions []domain.Action
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			record := func(action domain.Action) domain.Hook {
				return func(context.Context, doc.M) error {
					actions = append(actions, action)
					return nil
				}
			}
			if err := hooks.Register(domain.After, domain.ActionUpdate, record(domain.ActionUpdate)); err != nil {
				return err
			}
			return hooks.Register(domain.After, domain.ActionUpsert, record(domain.ActionUpsert))
		}))
	s.NoError(err)

	_, err = col.Insert(ctx, doc.M{"name": "Bob"})
	s.NoError(err)

	_, err = col.UpdateOne(ctx, doc.M{"name": "Bob"}, doc.M{"$set": doc.M{"n": 1}})
	s.NoError(err)
	s.Equal([]domain.Action{domain.ActionUpdate}, actions)

	actions = nil
	_, err = col.UpdateOne(ctx, doc.M{"name": "Zed"},
		doc.M{"$set": doc.M{"n": 1}}, domain.WithUpsert(true))
	s.NoError(err)
	s.Equal([]domain.Action{domain.ActionUpsert}, actions)
}

func (s *CollectionTestSuite) TestRemoveReturnsTheDeleted() {
	s.seedPeople()
	removed, err := s.col.Remove(ctx, doc.M{"age": doc.M{"$lt": 20}})
	s.NoError(err)
	s.Len(removed, 4)

	n, err := s.col.Count(ctx, doc.M{})
	s.NoError(err)
	s.EqualValues(1, n)
}

func (s *CollectionTestSuite) TestRemoveHooksTruncateTheList() {
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			return hooks.Register(domain.Before, domain.ActionRemove,
				func(_ context.Context, d doc.M) error {
					if d.Get("name") == "Waldo" {
						d.Unset(doc.KeyField)
					}
					return nil
				})
		}))
	s.NoError(err)
	_, err = col.Insert(ctx,
		doc.M{"name": "Bob"}, doc.M{"name": "Waldo"}, doc.M{"name": "Chris"})
	s.NoError(err)

	removed, err := col.Remove(ctx, doc.M{})
	s.NoError(err)
	s.Len(removed, 2)

	// the document dropped by the hook survives in the store
	left, err := col.Find(ctx, doc.M{})
	s.NoError(err)
	s.Len(left, 1)
	s.Equal("Waldo", left[0].Get("name"))
}

func (s *CollectionTestSuite) TestRemoveHookFailureAbortsBeforeTheStore() {
	boom := errors.New("boom")
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			return hooks.Register(domain.Before, domain.ActionRemove,
				func(context.Context, doc.M) error { return boom })
		}))
	s.NoError(err)
	_, err = col.Insert(ctx, doc.M{"name": "Bob"})
	s.NoError(err)

	_, err = col.Remove(ctx, doc.M{})
	s.ErrorIs(err, boom)

	n, err := col.Count(ctx, doc.M{})
	s.NoError(err)
	s.EqualValues(1, n)
}

func (s *CollectionTestSuite) TestInsertHookFailureAbortsBeforeTheStore() {
	boom := errors.New("boom")
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			return hooks.Register(domain.Before, domain.ActionInsert,
				func(context.Context, doc.M) error { return boom })
		}))
	s.NoError(err)

	_, err = col.Insert(ctx, doc.M{"name": "Bob"})
	s.ErrorIs(err, boom)

	n, err := col.Count(ctx, doc.M{})
	s.NoError(err)
	s.EqualValues(0, n)
}

func (s *CollectionTestSuite) TestAfterInsertHookFailureKeepsTheMutation() {
	boom := errors.New("boom")
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			return hooks.Register(domain.After, domain.ActionInsert,
				func(context.Context, doc.M) error { return boom })
		}))
	s.NoError(err)

	_, err = col.Insert(ctx, doc.M{"name": "Bob"}, doc.M{"name": "Alice"})
	s.ErrorIs(err, boom)
	var hookErr *domain.HookError
	s.ErrorAs(err, &hookErr)

	// the completed store mutation is not rolled back
	n, err := col.Count(ctx, doc.M{})
	s.NoError(err)
	s.EqualValues(2, n)
}

func (s *CollectionTestSuite) TestAfterUpdateHookFailureKeepsTheMutation() {
	boom := errors.New("boom")
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(hooks domain.HookRegistry, _ domain.TransformerTable) error {
			return hooks.Register(domain.After, domain.ActionUpdate,
				func(context.Context, doc.M) error { return boom })
		}))
	s.NoError(err)
	_, err = col.Insert(ctx, doc.M{"name": "Bob", "age": 11})
	s.NoError(err)

	_, err = col.UpdateOne(ctx, doc.M{"name": "Bob"}, doc.M{"$set": doc.M{"age": 12}})
	s.ErrorIs(err, boom)

	d, err := col.FindOne(ctx, doc.M{"name": "Bob"})
	s.NoError(err)
	s.Equal(12, d.Get("age"))
}

func (s *CollectionTestSuite) TestCustomIDGenerator() {
	g := new(idGeneratorMock)
	g.On("Generate").Return("u-1", nil).Once()
	g.On("Generate").Return("u-2", nil).Once()

	col, err := NewCollection(s.store, "people", domain.WithIDGenerator(g))
	s.NoError(err)
	docs, err := col.Insert(ctx, doc.M{"name": "Bob"}, doc.M{"name": "Alice"})
	s.NoError(err)
	s.ElementsMatch([]string{"u-1", "u-2"}, docs.AppIDs())
	g.AssertExpectations(s.T())
}

func (s *CollectionTestSuite) TestIDGeneratorFailureAbortsTheInsert() {
	boom := errors.New("boom")
	g := new(idGeneratorMock)
	g.On("Generate").Return("", boom)

	col, err := NewCollection(s.store, "people", domain.WithIDGenerator(g))
	s.NoError(err)
	_, err = col.Insert(ctx, doc.M{"name": "Bob"})
	s.ErrorIs(err, boom)

	n, err := col.Count(ctx, doc.M{})
	s.NoError(err)
	s.EqualValues(0, n)
}

func (s *CollectionTestSuite) TestSetupRunsOnceAndRegistersTransformers() {
	setups := 0
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(_ domain.HookRegistry, transformers domain.TransformerTable) error {
			setups++
			return transformers.Register("minors", func(any, doc.M, doc.M) (doc.M, error) {
				return doc.M{"age": doc.M{"$lt": 18}}, nil
			})
		}))
	s.NoError(err)

	_, err = col.Insert(ctx, doc.M{"name": "Bob", "age": 11}, doc.M{"name": "Alice", "age": 101})
	s.NoError(err)
	docs, err := col.Find(ctx, doc.M{normalizer.Marker: doc.M{"minors": true}})
	s.NoError(err)
	s.Len(docs, 1)
	s.Equal("Bob", docs[0].Get("name"))
	s.Equal(1, setups)
}

func (s *CollectionTestSuite) TestFailedInitializationRetries() {
	calls := 0
	boom := errors.New("boom")
	col, err := NewCollection(s.store, "people", domain.WithSetup(
		func(domain.HookRegistry, domain.TransformerTable) error {
			calls++
			if calls == 1 {
				return boom
			}
			return nil
		}))
	s.NoError(err)

	_, err = col.Insert(ctx, doc.M{"name": "Bob"})
	s.ErrorIs(err, boom)
	_, err = col.Insert(ctx, doc.M{"name": "Bob"})
	s.NoError(err)
	s.Equal(2, calls)
}

func TestCollectionTestSuite(t *testing.T) {
	suite.Run(t, new(CollectionTestSuite))
}
