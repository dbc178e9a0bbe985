package repository

import (
	"context"
	"errors"
	"time"

	"notifyhub/infrastructure/db"
	"notifyhub/internal/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	FindByID(ctx context.Context, userId string) (entity.User, error)
	UpdateRole(ctx context.Context, userId string, role entity.Role) error
}

type userRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) FindByID(ctx context.Context, userId string) (entity.User, error) {
	collection := r.db.Collection(db.UsersCollection)
	filter := bson.M{"_id": userId}

	var user entity.User
	err := collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.User{}, ErrUserNotFound
	}
	if err != nil {
		return entity.User{}, err
	}

	return user, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, userId string, role entity.Role) error {
	collection := r.db.Collection(db.UsersCollection)
	filter := bson.M{"_id": userId}
	update := bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now()}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
