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

// MessageRepository definition message persistence
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// FindConversation 兩人之間所有訊息, created_at 升序
	FindConversation(ctx context.Context, userA, userB string) ([]domain.Message, error)
	// AdvanceStatus 只在目前狀態早於 status 時更新, 回傳是否有更新
	AdvanceStatus(ctx context.Context, id string, status domain.MessageStatus) (bool, error)
	AddDeletedBy(ctx context.Context, id, userID string) error
	MarkDeletedForEveryone(ctx context.Context, id string) error
	UpdateReactions(ctx context.Context, id string, reactions []domain.Reaction) (*domain.Message, error)
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMessageRepository create a MessageRepository on the messages collection
func NewMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection(MessagesCollection),
	}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	filter := bson.M{"$or": []bson.M{
		{"sender_id": userA, "receiver_id": userB},
		{"sender_id": userB, "receiver_id": userA},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	messages := []domain.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) AdvanceStatus(ctx context.Context, id string, status domain.MessageStatus) (bool, error) {
	// 以目前狀態作條件, 同一訊息的併發更新不會倒退
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": status.Before()},
	}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *messageRepository) AddDeletedBy(ctx context.Context, id, userID string) error {
	update := bson.M{
		"$addToSet": bson.M{"deleted_by": userID},
		"$set":      bson.M{"updated_at": time.Now()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *messageRepository) MarkDeletedForEveryone(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"is_deleted_for_everyone": true, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *messageRepository) UpdateReactions(ctx context.Context, id string, reactions []domain.Reaction) (*domain.Message, error) {
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	update := bson.M{"$set": bson.M{"reactions": reactions, "updated_at": time.Now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg domain.Message
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
