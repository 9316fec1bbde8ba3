package repository

import (
	"context"
	"fmt"
	"time"

	"deskly/pkg/config"
	"deskly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ArchiveCollectionName = "Bookings"

// BookingArchive mirrors committed bookings to durable storage for audit and
// history. The in-memory repository stays the source of truth for conflict
// decisions; archive failures never roll a booking back.
type BookingArchive interface {
	Save(ctx context.Context, booking *model.Booking) error
	MarkCancelled(ctx context.Context, id string, at time.Time) error
	FindByOwner(ctx context.Context, owner string, limit int, offset int64) ([]*model.Booking, error)
}

type mongoBookingArchive struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingArchive(cfg *config.Config) BookingArchive {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingArchive{
		cfg:        cfg,
		collection: db.Collection(ArchiveCollectionName),
	}
}

func (a *mongoBookingArchive) Save(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.WriteTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, bson.M{"_id": booking.ID}, booking, opts); err != nil {
		return fmt.Errorf("failed to archive booking %s: %w", booking.ID, err)
	}
	return nil
}

func (a *mongoBookingArchive) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":       model.StatusCancelled,
		"cancelled_at": at,
	}}
	if _, err := a.collection.UpdateOne(ctx, bson.M{"_id": id}, update); err != nil {
		return fmt.Errorf("failed to mark booking %s cancelled in archive: %w", id, err)
	}
	return nil
}

func (a *mongoBookingArchive) FindByOwner(ctx context.Context, owner string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := a.collection.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking archive: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode archived bookings: %w", err)
	}
	return bookings, nil
}

// noopBookingArchive serves deployments without Mongo configured.
type noopBookingArchive struct{}

func NewNoopBookingArchive() BookingArchive {
	return noopBookingArchive{}
}

func (noopBookingArchive) Save(context.Context, *model.Booking) error { return nil }

func (noopBookingArchive) MarkCancelled(context.Context, string, time.Time) error { return nil }

func (noopBookingArchive) FindByOwner(context.Context, string, int, int64) ([]*model.Booking, error) {
	return nil, nil
}
