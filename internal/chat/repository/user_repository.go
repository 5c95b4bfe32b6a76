package repository

import (
	"context"
	"errors"
	"time"

	"bytetalk/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository definition user persistence used by chat
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindOthers 除了 excludeID 以外的所有使用者, 不含密碼
	FindOthers(ctx context.Context, excludeID string) ([]domain.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	AddMutedConversation(ctx context.Context, id, peerID string) ([]string, error)
	RemoveMutedConversation(ctx context.Context, id, peerID string) ([]string, error)
}

type userRepository struct {
	coll *mongo.Collection
}

// NewUserRepository create a UserRepository on the users collection
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		coll: db.Collection(UsersCollection),
	}
}

var withoutPassword = bson.M{"password": 0}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	opts := options.FindOne().SetProjection(withoutPassword)
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindOthers(ctx context.Context, excludeID string) ([]domain.User, error) {
	opts := options.Find().SetProjection(withoutPassword)
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": excludeID}}, opts)
	if err != nil {
		return nil, err
	}
	users := []domain.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) SetOnline(ctx context.Context, id string, online bool) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_online": online}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) AddMutedConversation(ctx context.Context, id, peerID string) ([]string, error) {
	return r.updateMuted(ctx, id, bson.M{"$addToSet": bson.M{"muted_conversations": peerID}})
}

func (r *userRepository) RemoveMutedConversation(ctx context.Context, id, peerID string) ([]string, error) {
	return r.updateMuted(ctx, id, bson.M{"$pull": bson.M{"muted_conversations": peerID}})
}

func (r *userRepository) updateMuted(ctx context.Context, id string, update bson.M) ([]string, error) {
	update["$set"] = bson.M{"updated_at": time.Now()}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"muted_conversations": 1})

	var user domain.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.MutedConversations == nil {
		return []string{}, nil
	}
	return user.MutedConversations, nil
}
