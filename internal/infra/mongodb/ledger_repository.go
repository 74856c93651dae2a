package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mdtalam/Fitness-sub001/internal/gateway"
)

// ledgerDoc é o documento salvo no Mongo. Tags 'bson' em vez de 'json'.
// _id determinístico (booking + kind) faz a redelivery at-least-once do
// worker cair em duplicate key em vez de duplicar histórico.
type ledgerDoc struct {
	ID          string    `bson:"_id"`
	BookingID   string    `bson:"booking_id"`
	SlotID      string    `bson:"slot_id"`
	MemberID    string    `bson:"member_id"`
	TrainerID   string    `bson:"trainer_id"`
	PackageType string    `bson:"package_type"`
	AmountPaid  int64     `bson:"amount_paid"`
	PaymentRef  string    `bson:"payment_ref"`
	Kind        string    `bson:"kind"`
	Reason      string    `bson:"reason,omitempty"`
	SlotStart   time.Time `bson:"slot_start"`
	OccurredAt  time.Time `bson:"occurred_at"`
	ProcessedAt time.Time `bson:"processed_at"`
}

type LedgerRepository struct {
	collection *mongo.Collection
}

func NewLedgerRepository(client *mongo.Client, dbName string) *LedgerRepository {
	collection := client.Database(dbName).Collection("booking_ledger")
	return &LedgerRepository{collection: collection}
}

func (r *LedgerRepository) Append(ctx context.Context, entry gateway.LedgerEntry) error {
	doc := ledgerDoc{
		ID:          entry.BookingID.String() + ":" + entry.Kind,
		BookingID:   entry.BookingID.String(),
		SlotID:      entry.SlotID.String(),
		MemberID:    entry.MemberID.String(),
		TrainerID:   entry.TrainerID.String(),
		PackageType: entry.PackageType,
		AmountPaid:  entry.AmountPaid,
		PaymentRef:  entry.PaymentRef,
		Kind:        entry.Kind,
		Reason:      entry.Reason,
		SlotStart:   entry.SlotStart,
		OccurredAt:  entry.OccurredAt,
		ProcessedAt: time.Now(),
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Redelivery: o documento já está lá. No-op.
			return nil
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]gateway.LedgerEntry, error) {
	return r.list(ctx, bson.M{"member_id": memberID.String()})
}

func (r *LedgerRepository) ListByTrainer(ctx context.Context, trainerID uuid.UUID) ([]gateway.LedgerEntry, error) {
	return r.list(ctx, bson.M{"trainer_id": trainerID.String()})
}

func (r *LedgerRepository) ListByPeriod(ctx context.Context, from, to time.Time) ([]gateway.LedgerEntry, error) {
	return r.list(ctx, bson.M{"occurred_at": bson.M{"$gte": from, "$lte": to}})
}

func (r *LedgerRepository) list(ctx context.Context, filter bson.M) ([]gateway.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}}).SetLimit(500)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []gateway.LedgerEntry
	for cursor.Next(ctx) {
		var doc ledgerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
		}
		entry, err := doc.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (d *ledgerDoc) toEntry() (gateway.LedgerEntry, error) {
	bookingID, err := uuid.Parse(d.BookingID)
	if err != nil {
		return gateway.LedgerEntry{}, fmt.Errorf("invalid booking id in ledger: %w", err)
	}
	slotID, _ := uuid.Parse(d.SlotID)
	memberID, _ := uuid.Parse(d.MemberID)
	trainerID, _ := uuid.Parse(d.TrainerID)

	return gateway.LedgerEntry{
		BookingID:   bookingID,
		SlotID:      slotID,
		MemberID:    memberID,
		TrainerID:   trainerID,
		PackageType: d.PackageType,
		AmountPaid:  d.AmountPaid,
		PaymentRef:  d.PaymentRef,
		Kind:        d.Kind,
		Reason:      d.Reason,
		SlotStart:   d.SlotStart,
		OccurredAt:  d.OccurredAt,
	}, nil
}
