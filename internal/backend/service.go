package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"model-graphql/internal/clientschema"
	"model-graphql/internal/logging"
	"model-graphql/internal/store"
)

// Hasher hashes and compares secrets.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Compare(ctx context.Context, plaintext, hash string) (bool, error)
}

// TokenIssuer signs tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

var _ Backend = (*Service)(nil)

// Service implements Backend over a Store. The zero user id means anonymous.
type Service struct {
	store  store.Store
	schema clientschema.Schema
	hasher Hasher
	tokens TokenIssuer
	userID string
	user   *currentUser
}

// currentUser holds the bound user's record once loaded for a request.
type currentUser struct {
	once sync.Once
	rec  Record
	err  error
}

// NewService returns an anonymous Service.
func NewService(st store.Store, schema clientschema.Schema, hasher Hasher, tokens TokenIssuer) *Service {
	return &Service{store: st, schema: schema, hasher: hasher, tokens: tokens}
}

// ForUser returns a copy of s bound to userID. The user's record is loaded at
// most once for the returned Service.
func (s *Service) ForUser(userID string) *Service {
	bound := *s
	bound.userID = userID
	bound.user = &currentUser{}
	return &bound
}

// WithSchema returns a copy of s that resolves relations against schema.
func (s *Service) WithSchema(schema clientschema.Schema) *Service {
	bound := *s
	bound.schema = schema
	bound.user = &currentUser{}
	return &bound
}

// UserID returns the bound user id.
func (s *Service) UserID() string {
	return s.userID
}

func (s *Service) debug(ctx context.Context, msg string, op Operation, attrs ...any) {
	logger := logging.FromContext(ctx)
	attrs = append(attrs,
		slog.String("operation", op.Type),
		slog.String("field", op.FieldName),
		slog.String("parent_type", op.ParentType),
	)
	logger.Debug(msg, attrs...)
}

// AllNodesByType implements Backend.
func (s *Service) AllNodesByType(ctx context.Context, entity string, _ map[string]any, _ clientschema.Entity, _ Record, op Operation) ([]Record, error) {
	s.debug(ctx, "backend list all", op, slog.String("entity", entity))
	recs, err := s.store.List(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", entity, err)
	}
	return recs, nil
}

// NodesByRelation implements Backend. The relation's inverse field on the
// related entity is used when one exists; otherwise the owner's stored id list
// for the relation is followed.
func (s *Service) NodesByRelation(ctx context.Context, ownerEntity, ownerID, relationField string, _ map[string]any, related clientschema.Entity, _ Record, op Operation) ([]Record, error) {
	s.debug(ctx, "backend list related", op,
		slog.String("owner", ownerEntity),
		slog.String("relation", relationField),
		slog.String("related", related.ModelName),
	)

	relation := clientschema.Field{Name: relationField}
	if owner, ok := s.schema.Entity(ownerEntity); ok {
		if f, ok := owner.Field(relationField); ok {
			relation = f
		}
	}
	if back, ok := related.InverseOf(ownerEntity, relation); ok {
		recs, err := s.store.FindByField(ctx, related.ModelName, back.ForeignKeyName(), ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s.%s: %w", ownerEntity, relationField, err)
		}
		return recs, nil
	}

	owner, err := s.store.Get(ctx, ownerEntity, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", ownerEntity, ownerID, err)
	}
	ids := stringList(owner[relation.ForeignKeyListName()])
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.Get(ctx, related.ModelName, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", related.ModelName, id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// NodeByID implements Backend.
func (s *Service) NodeByID(ctx context.Context, entity, id string, _ clientschema.Entity, _ Record, op Operation) (Record, error) {
	s.debug(ctx, "backend fetch node", op, slog.String("entity", entity))
	rec, err := s.store.Get(ctx, entity, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", entity, id, err)
	}
	return rec, nil
}

// FindUserByEmail implements Backend.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (Record, error) {
	recs, err := s.store.FindByField(ctx, clientschema.UserModelName, "email", email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

// CreateNode implements Backend.
func (s *Service) CreateNode(ctx context.Context, entity string, data Record, schema clientschema.Entity, _ Record, op Operation) (Record, error) {
	s.debug(ctx, "backend create", op, slog.String("entity", entity))
	prepared, err := s.prepare(ctx, data, schema)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Insert(ctx, entity, prepared)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", entity, err)
	}
	return rec, nil
}

// UpdateNode implements Backend.
func (s *Service) UpdateNode(ctx context.Context, entity, id string, data Record, schema clientschema.Entity, _ Record, op Operation) (Record, error) {
	s.debug(ctx, "backend update", op, slog.String("entity", entity))
	prepared, err := s.prepare(ctx, data, schema)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, entity, id, prepared)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", entity, id, err)
	}
	return rec, nil
}

// DeleteNode implements Backend.
func (s *Service) DeleteNode(ctx context.Context, entity, id string, _ clientschema.Entity, _ Record, op Operation) (Record, error) {
	s.debug(ctx, "backend delete", op, slog.String("entity", entity))
	rec, err := s.store.Delete(ctx, entity, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s %s: %w", entity, id, err)
	}
	return rec, nil
}

// prepare hashes Password fields present in data.
func (s *Service) prepare(ctx context.Context, data Record, schema clientschema.Entity) (Record, error) {
	out := data.Clone()
	for _, f := range schema.Fields {
		if !f.IsSecret() {
			continue
		}
		plaintext, ok := out[f.Name].(string)
		if !ok {
			continue
		}
		hashed, err := s.HashSecret(ctx, plaintext)
		if err != nil {
			return nil, err
		}
		out[f.Name] = hashed
	}
	return out, nil
}

// HashSecret implements Backend.
func (s *Service) HashSecret(ctx context.Context, plaintext string) (string, error) {
	if s.hasher == nil {
		return "", errors.New("no secret hasher configured")
	}
	return s.hasher.Hash(ctx, plaintext)
}

// CompareSecret implements Backend.
func (s *Service) CompareSecret(ctx context.Context, plaintext, hash string) (bool, error) {
	if s.hasher == nil {
		return false, errors.New("no secret hasher configured")
	}
	return s.hasher.Compare(ctx, plaintext, hash)
}

// IssueToken implements Backend.
func (s *Service) IssueToken(user Record) (string, error) {
	if s.tokens == nil {
		return "", errors.New("no token issuer configured")
	}
	return s.tokens.Issue(user.ID())
}

// CurrentUser implements Backend. The first call on a bound Service loads the
// record; later calls return the same result.
func (s *Service) CurrentUser(ctx context.Context) (Record, error) {
	if s.userID == "" || !s.schema.HasUser() {
		return nil, nil
	}
	if s.user == nil {
		return s.loadUser(ctx)
	}
	s.user.once.Do(func() {
		s.user.rec, s.user.err = s.loadUser(ctx)
	})
	return s.user.rec, s.user.err
}

func (s *Service) loadUser(ctx context.Context) (Record, error) {
	rec, err := s.store.Get(ctx, clientschema.UserModelName, s.userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return rec, nil
}

func stringList(v any) []string {
	switch ids := v.(type) {
	case []string:
		return ids
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
