package schemagen

import (
	"context"
	"fmt"
	"testing"

	"model-graphql/internal/auth"
	"model-graphql/internal/backend"
	"model-graphql/internal/clientschema"
	"model-graphql/internal/naming"
	"model-graphql/internal/nodeid"
	"model-graphql/internal/store"
	"model-graphql/internal/store/memory"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const blogYAML = `
models:
  - modelName: User
    fields:
      - {fieldName: id, typeIdentifier: ID, isRequired: true}
      - {fieldName: email, typeIdentifier: String, isRequired: true}
      - {fieldName: password, typeIdentifier: Password, isRequired: true}
      - {fieldName: name, typeIdentifier: String}
      - {fieldName: posts, typeIdentifier: Post, isList: true}
  - modelName: Post
    fields:
      - {fieldName: id, typeIdentifier: ID, isRequired: true}
      - {fieldName: title, typeIdentifier: String, isRequired: true}
      - {fieldName: views, typeIdentifier: Int, defaultValue: "0"}
      - {fieldName: rating, typeIdentifier: Float}
      - {fieldName: published, typeIdentifier: Boolean, defaultValue: "false"}
      - {fieldName: status, typeIdentifier: Enum, enumValues: [DRAFT, PUBLISHED], defaultValue: DRAFT}
      - {fieldName: author, typeIdentifier: User, isRequired: true}
      - {fieldName: comments, typeIdentifier: Comment, isList: true}
  - modelName: Comment
    fields:
      - {fieldName: id, typeIdentifier: ID, isRequired: true}
      - {fieldName: body, typeIdentifier: String}
      - {fieldName: post, typeIdentifier: Post}
`

func blogSchema(t *testing.T) clientschema.Schema {
	t.Helper()
	schema, err := clientschema.Parse([]byte(blogYAML), clientschema.FormatYAML)
	require.NoError(t, err)
	return schema
}

type fixedIssuer struct{}

func (fixedIssuer) Issue(userID string) (string, error) {
	return "token-for-" + userID, nil
}

type harness struct {
	result  *Result
	store   *memory.Store
	service *backend.Service
	backend backend.Backend
}

func newHarness(t *testing.T, mode Mode) *harness {
	t.Helper()
	schema := blogSchema(t)
	result, err := New(Options{Mode: mode}).Build(schema)
	require.NoError(t, err)

	next := 0
	st := memory.New(memory.WithIDGenerator(func() string {
		next++
		return fmt.Sprintf("r%d", next)
	}))
	svc := backend.NewService(st, schema, auth.NewBcryptHasher(bcrypt.MinCost), fixedIssuer{})
	return &harness{result: result, store: st, service: svc, backend: svc}
}

func (h *harness) as(userID string) *harness {
	bound := *h
	bound.backend = h.service.ForUser(userID)
	return &bound
}

func (h *harness) insert(t *testing.T, model string, rec store.Record) store.Record {
	t.Helper()
	out, err := h.store.Insert(context.Background(), model, rec)
	require.NoError(t, err)
	return out
}

func (h *harness) exec(query string, vars map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         h.result.Schema,
		RequestString:  query,
		VariableValues: vars,
		Context:        backend.WithBackend(context.Background(), h.backend),
	})
}

func (h *harness) mustExec(t *testing.T, query string, vars map[string]interface{}) map[string]interface{} {
	t.Helper()
	result := h.exec(query, vars)
	require.Empty(t, result.Errors, "unexpected errors: %v", result.Errors)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok, "unexpected data: %#v", result.Data)
	return data
}

func errorCode(t *testing.T, result *graphql.Result) string {
	t.Helper()
	require.NotEmpty(t, result.Errors)
	code, _ := result.Errors[0].Extensions["code"].(string)
	return code
}

func gid(model string, rec store.Record) string {
	return nodeid.Encode(model, rec.ID())
}

func field(t *testing.T, obj *graphql.Object, name string) *graphql.FieldDefinition {
	t.Helper()
	def, ok := obj.Fields()[name]
	require.True(t, ok, "%s has no field %q", obj.Name(), name)
	return def
}

func hasArg(def *graphql.FieldDefinition, name string) bool {
	for _, arg := range def.Args {
		if arg != nil && arg.Name() == name {
			return true
		}
	}
	return false
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRelay, mode)

	mode, err = ParseMode(" Simple ")
	require.NoError(t, err)
	assert.Equal(t, ModeSimple, mode)

	_, err = ParseMode("graphcool")
	assert.Error(t, err)
}

func TestBuildProducesBundlePerModel(t *testing.T) {
	result, err := New(Options{}).Build(blogSchema(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"User", "Post", "Comment"}, result.Order)
	for _, name := range result.Order {
		bundle := result.Bundles[name]
		require.NotNil(t, bundle, name)
		assert.Equal(t, name, bundle.Object.Name())
		assert.Equal(t, name+"Connection", bundle.Connection.Name())
		assert.Equal(t, name+"Edge", bundle.Edge.Name())
		assert.Equal(t, name+"Filter", bundle.Filter.Name())
		assert.Equal(t, name+"SortBy", bundle.SortBy.Name())
		assert.Same(t, bundle.Object, result.Schema.Type(name))
	}
}

func TestRequiredFieldsAreNonNullAfterWiring(t *testing.T) {
	result, err := New(Options{}).Build(blogSchema(t))
	require.NoError(t, err)
	post := result.Bundles["Post"].Object
	user := result.Bundles["User"].Object

	title, ok := field(t, post, "title").Type.(*graphql.NonNull)
	require.True(t, ok)
	assert.Equal(t, graphql.String, title.OfType)

	author, ok := field(t, post, "author").Type.(*graphql.NonNull)
	require.True(t, ok, "required relation should be non-null")
	assert.Same(t, user, author.OfType, "non-null must wrap the wired object type")

	id, ok := field(t, post, "id").Type.(*graphql.NonNull)
	require.True(t, ok)
	assert.Equal(t, graphql.ID, id.OfType)

	_, wrapped := field(t, post, "views").Type.(*graphql.NonNull)
	assert.False(t, wrapped)

	comment := result.Bundles["Comment"].Object
	assert.Same(t, post, field(t, comment, "post").Type)
}

func TestApplyNonNullRejectsPlaceholders(t *testing.T) {
	entity, ok := blogSchema(t).Entity("Post")
	require.True(t, ok)
	author, ok := entity.Field("author")
	require.True(t, ok)

	plans := []fieldPlan{
		{field: clientschema.Field{Name: "title", TypeIdentifier: "String", IsRequired: true}, kind: kindScalar, typ: graphql.String},
		{field: author, kind: kindOneToOne, target: "User"},
	}
	_, err := applyNonNull(entity, plans)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Post.author: relation to User has not been wired")
}

func TestApplyNonNullDoesNotMutateInput(t *testing.T) {
	entity := clientschema.Entity{ModelName: "Tag"}
	plans := []fieldPlan{
		{field: clientschema.Field{Name: "label", TypeIdentifier: "String", IsRequired: true}, kind: kindScalar, typ: graphql.String},
	}
	out, err := applyNonNull(entity, plans)
	require.NoError(t, err)
	assert.Equal(t, graphql.String, plans[0].typ)
	_, ok := out[0].typ.(*graphql.NonNull)
	assert.True(t, ok)

	again, err := applyNonNull(entity, out)
	require.NoError(t, err)
	assert.Same(t, out[0].typ, again[0].typ, "already wrapped types are kept")
}

func TestRelationFieldsAreWired(t *testing.T) {
	result, err := New(Options{Mode: ModeRelay}).Build(blogSchema(t))
	require.NoError(t, err)

	posts := field(t, result.Bundles["User"].Object, "posts")
	assert.Same(t, result.Bundles["Post"].Connection, posts.Type)
	for _, arg := range []string{"filter", "orderBy", "first", "after", "last", "before"} {
		assert.True(t, hasArg(posts, arg), "posts should accept %s", arg)
	}

	simple, err := New(Options{Mode: ModeSimple}).Build(blogSchema(t))
	require.NoError(t, err)
	simplePosts := field(t, simple.Bundles["User"].Object, "posts")
	list, ok := simplePosts.Type.(*graphql.List)
	require.True(t, ok)
	inner, ok := list.OfType.(*graphql.NonNull)
	require.True(t, ok)
	assert.Same(t, simple.Bundles["Post"].Object, inner.OfType)
	assert.True(t, hasArg(simplePosts, "skip"))
	assert.True(t, hasArg(simplePosts, "take"))
	assert.False(t, hasArg(simplePosts, "first"))
}

func TestArgumentShapes(t *testing.T) {
	result, err := New(Options{}).Build(blogSchema(t))
	require.NoError(t, err)
	post := result.Bundles["Post"]

	t.Run("create", func(t *testing.T) {
		assert.NotContains(t, post.CreateArgs, "id")
		assert.NotContains(t, post.CreateArgs, "author")
		assert.NotContains(t, post.CreateArgs, "comments")
		assert.IsType(t, &graphql.NonNull{}, post.CreateArgs["title"].Type)
		assert.Equal(t, graphql.Int, post.CreateArgs["views"].Type)
		authorID, ok := post.CreateArgs["authorId"].Type.(*graphql.NonNull)
		require.True(t, ok)
		assert.Equal(t, graphql.ID, authorID.OfType)
	})

	t.Run("update", func(t *testing.T) {
		id, ok := post.UpdateArgs["id"].Type.(*graphql.NonNull)
		require.True(t, ok)
		assert.Equal(t, graphql.ID, id.OfType)
		assert.Equal(t, graphql.String, post.UpdateArgs["title"].Type)
		assert.Equal(t, graphql.ID, post.UpdateArgs["authorId"].Type)
		assert.NotContains(t, post.UpdateArgs, "comments")
	})

	t.Run("filter", func(t *testing.T) {
		fields := post.Filter.Fields()
		for _, name := range []string{"id", "title", "views", "rating", "published", "status", "authorId"} {
			require.Contains(t, fields, name)
			_, required := fields[name].Type.(*graphql.NonNull)
			assert.False(t, required, "%s should be optional", name)
		}
		assert.NotContains(t, fields, "comments")
		assert.NotContains(t, fields, "author")
	})

	t.Run("password", func(t *testing.T) {
		user := result.Bundles["User"]
		assert.Contains(t, user.CreateArgs, "password")
		assert.Contains(t, user.UpdateArgs, "password")
		assert.NotContains(t, user.Filter.Fields(), "password")
		assert.NotContains(t, user.Object.Fields(), "password")
		for _, v := range user.SortBy.Values() {
			assert.NotContains(t, v.Name, "password")
		}
	})
}

func TestSortEnumValues(t *testing.T) {
	result, err := New(Options{}).Build(blogSchema(t))
	require.NoError(t, err)

	var names []string
	for _, v := range result.Bundles["Post"].SortBy.Values() {
		names = append(names, v.Name)
	}
	assert.ElementsMatch(t, []string{
		"id_ASC", "id_DESC",
		"title_ASC", "title_DESC",
		"views_ASC", "views_DESC",
		"rating_ASC", "rating_DESC",
		"published_ASC", "published_DESC",
		"status_ASC", "status_DESC",
	}, names)
}

func TestEnumIdentity(t *testing.T) {
	shared := NewEnumRegistry()
	first, err := New(Options{Enums: shared}).Build(blogSchema(t))
	require.NoError(t, err)
	second, err := New(Options{Enums: shared, Mode: ModeSimple}).Build(blogSchema(t))
	require.NoError(t, err)

	statusEnum := first.Schema.Type("Post_status")
	require.NotNil(t, statusEnum)
	assert.Same(t, statusEnum, second.Schema.Type("Post_status"))
	assert.Equal(t, 1, shared.Len())

	post := first.Bundles["Post"]
	assert.Same(t, statusEnum, field(t, post.Object, "status").Type)
	assert.Same(t, statusEnum, post.Filter.Fields()["status"].Type)

	isolated, err := New(Options{}).Build(blogSchema(t))
	require.NoError(t, err)
	assert.NotSame(t, statusEnum, isolated.Schema.Type("Post_status"))
}

func TestEnumRegistryConcurrentUse(t *testing.T) {
	registry := NewEnumRegistry()
	f := clientschema.Field{Name: "status", TypeIdentifier: "Enum", EnumValues: []string{"A", "B"}}

	results := make(chan *graphql.Enum, 16)
	for i := 0; i < 16; i++ {
		go func() {
			results <- registry.Enum("Post", f)
		}()
	}
	first := <-results
	for i := 1; i < 16; i++ {
		assert.Same(t, first, <-results)
	}
}

func TestBuildRejectsInvalidSchemas(t *testing.T) {
	idField := clientschema.Field{Name: "id", TypeIdentifier: "ID", IsRequired: true}

	_, err := New(Options{}).Build(clientschema.Schema{Models: []clientschema.Entity{
		{ModelName: "Post", Fields: []clientschema.Field{{Name: "title", TypeIdentifier: "String"}}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected exactly one "id" field`)

	_, err = New(Options{}).Build(clientschema.Schema{Models: []clientschema.Entity{
		{ModelName: "Post", Fields: []clientschema.Field{idField}},
		{ModelName: "PostEdge", Fields: []clientschema.Field{idField}},
	}})
	var collision *naming.CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "PostEdge", collision.Name)
}

func TestSchemaWithoutUserHasNoAuthFields(t *testing.T) {
	schema := clientschema.Schema{Models: []clientschema.Entity{
		{ModelName: "Tag", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID", IsRequired: true},
			{Name: "label", TypeIdentifier: "String"},
		}},
	}}
	for _, mode := range []Mode{ModeRelay, ModeSimple} {
		result, err := New(Options{Mode: mode}).Build(schema)
		require.NoError(t, err)
		assert.NotContains(t, result.Schema.QueryType().Fields(), "user")
		assert.Contains(t, result.Schema.QueryType().Fields(), "allTags")
		assert.NotContains(t, result.Schema.MutationType().Fields(), naming.SigninField)
		assert.Contains(t, result.Schema.MutationType().Fields(), "createTag")
	}
}

func TestIdentityFieldIsAlwaysNonNull(t *testing.T) {
	schema := clientschema.Schema{Models: []clientschema.Entity{
		{ModelName: "Tag", Fields: []clientschema.Field{
			{Name: "id", TypeIdentifier: "ID"},
		}},
	}}
	result, err := New(Options{}).Build(schema)
	require.NoError(t, err)
	_, ok := field(t, result.Bundles["Tag"].Object, "id").Type.(*graphql.NonNull)
	assert.True(t, ok)
}
