package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront-catalog-service/internal/domain"
)

// MongoStore implements Gateway on a MongoDB database.
type MongoStore struct {
	client     *mongo.Client
	products   *mongo.Collection
	categories *mongo.Collection
	users      *mongo.Collection
	now        func() time.Time
}

// ConnectMongo dials uri, pings the deployment and returns a store bound to dbName.
func ConnectMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(timeoutCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(timeoutCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: failed to ping MongoDB: %w", err)
	}
	s := NewMongoStore(client.Database(dbName))
	s.client = client
	return s, nil
}

// NewMongoStore wraps an already opened database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		products:   db.Collection("products"),
		categories: db.Collection("categories"),
		users:      db.Collection("users"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique indexes the store relies on for conflict detection.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "category_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("store: EnsureIndexes failed on categories: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("store: EnsureIndexes failed on users: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		zap.L().Error("Failed to disconnect from MongoDB", zap.Error(err))
		return fmt.Errorf("store: failed to disconnect from MongoDB: %w", err)
	}
	zap.L().Info("Disconnected from MongoDB")
	return nil
}

// --- CategoryStorer Implementation ---

func (s *MongoStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cursor, err := s.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query categories: %w", err)
	}
	defer cursor.Close(ctx)

	categories := []domain.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to decode categories: %w", err)
	}
	return categories, nil
}

func (s *MongoStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	created := domain.Category{
		ID:         uuid.NewString(),
		CategoryID: category.CategoryID,
		Name:       category.Name,
		CreatedAt:  s.now(),
	}
	if _, err := s.categories.InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategorySlugExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed to insert: %w", err)
	}
	return &created, nil
}

func (s *MongoStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// --- ProductStorer Implementation ---

func (s *MongoStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cursor, err := s.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []domain.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("store: ListProducts failed to decode products: %w", err)
	}
	return products, nil
}

func (s *MongoStore) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductByID failed to decode product: %w", err)
	}
	return &product, nil
}

func (s *MongoStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	created := product.Clone()
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	if _, err := s.products.InsertOne(ctx, created); err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to insert: %w", err)
	}
	return &created, nil
}

// UpdateProduct replaces the whole document so cleared optional fields are dropped.
func (s *MongoStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	doc := product.Clone()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = s.now()
	}
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)

	var updated domain.Product
	err := s.products.FindOneAndReplace(ctx, bson.M{"_id": product.ID}, doc, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to replace product %s: %w", product.ID, err)
	}
	return &updated, nil
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- UserStorer Implementation ---

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := s.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: GetUserByEmail failed to decode user: %w", err)
	}
	return &user, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	created := *user
	created.ID = uuid.NewString()
	created.Email = strings.ToLower(user.Email)
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	if _, err := s.users.InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserEmailExists
		}
		return nil, fmt.Errorf("store: CreateUser failed to insert: %w", err)
	}
	return &created, nil
}

func (s *MongoStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	update := bson.M{"$set": bson.M{"password_hash": hash, "updated_at": s.now()}}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("store: UpdatePasswordHash failed to update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
