package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"model-graphql/internal/clientschema"
	"model-graphql/internal/store"
	"model-graphql/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixHasher struct{}

func (prefixHasher) Hash(_ context.Context, plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (prefixHasher) Compare(_ context.Context, plaintext, hash string) (bool, error) {
	return hash == "hashed:"+plaintext, nil
}

type fixedIssuer struct{}

func (fixedIssuer) Issue(userID string) (string, error) {
	return "token-for-" + userID, nil
}

func testSchema() clientschema.Schema {
	return clientschema.Schema{Models: []clientschema.Entity{
		{ModelName: "User", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID", IsRequired: true},
			{Name: "email", TypeIdentifier: "String"},
			{Name: "password", TypeIdentifier: "Password"},
			{Name: "posts", TypeIdentifier: "Post", IsList: true},
			{Name: "tags", TypeIdentifier: "Tag", IsList: true},
		}},
		{ModelName: "Post", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID", IsRequired: true},
			{Name: "title", TypeIdentifier: "String"},
			{Name: "author", TypeIdentifier: "User"},
		}},
		{ModelName: "Tag", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID", IsRequired: true},
			{Name: "label", TypeIdentifier: "String"},
		}},
	}}
}

func newTestService() (*Service, *memory.Store) {
	next := 0
	st := memory.New(memory.WithIDGenerator(func() string {
		next++
		return fmt.Sprintf("r%d", next)
	}))
	return NewService(st, testSchema(), prefixHasher{}, fixedIssuer{}), st
}

func entity(t *testing.T, name string) clientschema.Entity {
	t.Helper()
	e, ok := testSchema().Entity(name)
	require.True(t, ok)
	return e
}

func TestContextBinding(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoBackend)

	svc, _ := newTestService()
	ctx := WithBackend(context.Background(), svc)
	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, svc, got)

	assert.Empty(t, UserIDFromContext(ctx))
	assert.Equal(t, "u1", UserIDFromContext(WithUserID(ctx, "u1")))
}

func TestCreateHashesPasswords(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()
	user := entity(t, "User")

	rec, err := svc.CreateNode(ctx, "User", Record{"email": "a@b.c", "password": "secret"}, user, nil, Operation{Type: "mutation", FieldName: "createUser"})
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID())
	assert.Equal(t, "hashed:secret", rec["password"])

	stored, err := st.Get(ctx, "User", "r1")
	require.NoError(t, err)
	assert.Equal(t, "hashed:secret", stored["password"])

	updated, err := svc.UpdateNode(ctx, "User", "r1", Record{"password": "other"}, user, nil, Operation{})
	require.NoError(t, err)
	assert.Equal(t, "hashed:other", updated["password"])
	assert.Equal(t, "a@b.c", updated["email"])
}

func TestCreateDoesNotMutateInput(t *testing.T) {
	svc, _ := newTestService()
	in := Record{"password": "secret"}
	_, err := svc.CreateNode(context.Background(), "User", in, entity(t, "User"), nil, Operation{})
	require.NoError(t, err)
	assert.Equal(t, "secret", in["password"])
}

func TestNodeByIDMissingReturnsNil(t *testing.T) {
	svc, _ := newTestService()
	rec, err := svc.NodeByID(context.Background(), "Post", "nope", entity(t, "Post"), nil, Operation{})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestNodesByRelationBackReference(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()
	u, err := st.Insert(ctx, "User", store.Record{"email": "a@b.c"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "Post", store.Record{"title": "one", "authorId": u.ID()})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "Post", store.Record{"title": "other", "authorId": "someone-else"})
	require.NoError(t, err)
	_, err = st.Insert(ctx, "Post", store.Record{"title": "two", "authorId": u.ID()})
	require.NoError(t, err)

	recs, err := svc.NodesByRelation(ctx, "User", u.ID(), "posts", nil, entity(t, "Post"), nil, Operation{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "one", recs[0]["title"])
	assert.Equal(t, "two", recs[1]["title"])
}

func TestNodesByRelationIDList(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()
	t1, err := st.Insert(ctx, "Tag", store.Record{"label": "go"})
	require.NoError(t, err)
	t2, err := st.Insert(ctx, "Tag", store.Record{"label": "graphql"})
	require.NoError(t, err)
	u, err := st.Insert(ctx, "User", store.Record{"tagsIds": []any{t2.ID(), "gone", t1.ID()}})
	require.NoError(t, err)

	recs, err := svc.NodesByRelation(ctx, "User", u.ID(), "tags", nil, entity(t, "Tag"), nil, Operation{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "graphql", recs[0]["label"])
	assert.Equal(t, "go", recs[1]["label"])

	recs, err = svc.NodesByRelation(ctx, "User", "missing", "tags", nil, entity(t, "Tag"), nil, Operation{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFindUserByEmail(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()
	_, err := st.Insert(ctx, "User", store.Record{"email": "a@b.c"})
	require.NoError(t, err)

	rec, err := svc.FindUserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "r1", rec.ID())

	rec, err = svc.FindUserByEmail(ctx, "x@y.z")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()

	anon, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, anon)

	u, err := st.Insert(ctx, "User", store.Record{"email": "a@b.c"})
	require.NoError(t, err)

	bound := svc.ForUser(u.ID())
	assert.Empty(t, svc.UserID())
	rec, err := bound.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a@b.c", rec["email"])

	gone, err := svc.ForUser("deleted").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, gone)

	noUsers := bound.WithSchema(clientschema.Schema{Models: []clientschema.Entity{entity(t, "Tag")}})
	rec, err = noUsers.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTokensAndSecrets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	tok, err := svc.IssueToken(Record{"id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "token-for-u1", tok)

	ok, err := svc.CompareSecret(ctx, "pw", "hashed:pw")
	require.NoError(t, err)
	assert.True(t, ok)

	bare := NewService(memory.New(), testSchema(), nil, nil)
	_, err = bare.HashSecret(ctx, "pw")
	assert.Error(t, err)
	_, err = bare.IssueToken(Record{"id": "u1"})
	assert.Error(t, err)
}

type failingStore struct {
	store.Store
}

func (failingStore) List(context.Context, string) ([]store.Record, error) {
	return nil, errors.New("boom")
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	svc := NewService(failingStore{Store: memory.New()}, testSchema(), prefixHasher{}, nil)
	_, err := svc.AllNodesByType(context.Background(), "Post", nil, entity(t, "Post"), nil, Operation{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to list Post"))
}

func TestNodesByRelationUsesDeclaredInverse(t *testing.T) {
	ctx := context.Background()
	schema := clientschema.Schema{Models: []clientschema.Entity{
		{ModelName: "User", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID", IsRequired: true},
			{Name: "posts", TypeIdentifier: "Post", IsList: true, InverseField: "author"},
			{Name: "edited", TypeIdentifier: "Post", IsList: true, InverseField: "editor"},
		}},
		{ModelName: "Post", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID", IsRequired: true},
			{Name: "title", TypeIdentifier: "String"},
			{Name: "author", TypeIdentifier: "User"},
			{Name: "editor", TypeIdentifier: "User"},
		}},
	}}
	require.NoError(t, schema.Validate())
	st := memory.New()
	svc := NewService(st, schema, prefixHasher{}, nil)
	post, _ := schema.Entity("Post")

	alice, err := st.Insert(ctx, "User", store.Record{})
	require.NoError(t, err)
	bob, err := st.Insert(ctx, "User", store.Record{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := st.Insert(ctx, "Post", store.Record{"title": fmt.Sprintf("p%d", i), "authorId": alice.ID(), "editorId": bob.ID()})
		require.NoError(t, err)
	}

	tests := []struct {
		owner    string
		relation string
		want     int
	}{
		{alice.ID(), "posts", 3},
		{alice.ID(), "edited", 0},
		{bob.ID(), "posts", 0},
		{bob.ID(), "edited", 3},
	}
	for _, tt := range tests {
		recs, err := svc.NodesByRelation(ctx, "User", tt.owner, tt.relation, nil, post, nil, Operation{})
		require.NoError(t, err)
		assert.Len(t, recs, tt.want, "%s.%s", tt.owner, tt.relation)
	}
}

type countingStore struct {
	store.Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, model, id string) (store.Record, error) {
	c.gets++
	return c.Store.Get(ctx, model, id)
}

func TestCurrentUserLoadedOncePerBinding(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	u, err := mem.Insert(ctx, "User", store.Record{"email": "a@b.c"})
	require.NoError(t, err)
	st := &countingStore{Store: mem}
	svc := NewService(st, testSchema(), prefixHasher{}, nil)

	bound := svc.ForUser(u.ID())
	for i := 0; i < 5; i++ {
		rec, err := bound.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", rec["email"])
	}
	assert.Equal(t, 1, st.gets)

	_, err = svc.ForUser(u.ID()).CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.gets, "each binding loads its own user")

	anon, err := svc.ForUser("").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, anon)
	assert.Equal(t, 2, st.gets)
}
