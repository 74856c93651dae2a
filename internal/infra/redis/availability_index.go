package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mdtalam/Fitness-sub001/internal/domain"
)

// AvailabilityIndex implementa gateway.AvailabilityIndex.
// Layout das chaves:
//
//	availability:slot:<slot_id>              -> snapshot JSON do slot
//	availability:day:<trainer_id>:<yyyy-mm-dd> -> SET de slot_ids do dia
//
// O worker reescreve o snapshot a cada evento de estado; o TTL grande é
// só higiene para slots que nunca mais mudam.
type AvailabilityIndex struct {
	client *redis.Client
}

func NewAvailabilityIndex(client *redis.Client) *AvailabilityIndex {
	return &AvailabilityIndex{client: client}
}

// snapshotDoc é o formato serializado no Redis (não vaza para o domínio).
type snapshotDoc struct {
	SlotID    string    `json:"slot_id"`
	TrainerID string    `json:"trainer_id"`
	ClassID   string    `json:"class_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int32     `json:"capacity"`
	Remaining int32     `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

func slotKey(slotID uuid.UUID) string {
	return "availability:slot:" + slotID.String()
}

func dayKey(trainerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("availability:day:%s:%s", trainerID, day.UTC().Format("2006-01-02"))
}

func (i *AvailabilityIndex) Get(ctx context.Context, slotID uuid.UUID) (*domain.SlotAvailability, error) {
	val, err := i.client.Get(ctx, slotKey(slotID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability snapshot: %w", err)
	}

	var doc snapshotDoc
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability snapshot: %w", err)
	}
	availability, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return availability, nil
}

func (i *AvailabilityIndex) Save(ctx context.Context, availability domain.SlotAvailability, ttl time.Duration) error {
	doc := snapshotDoc{
		SlotID:    availability.SlotID.String(),
		TrainerID: availability.TrainerID.String(),
		ClassID:   availability.ClassID.String(),
		StartTime: availability.StartTime,
		EndTime:   availability.EndTime,
		Capacity:  availability.Capacity,
		Remaining: availability.Remaining,
		UpdatedAt: availability.UpdatedAt,
	}
	bytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal availability snapshot: %w", err)
	}

	// Snapshot e set do dia juntos num pipeline: uma viagem só.
	pipe := i.client.Pipeline()
	pipe.Set(ctx, slotKey(availability.SlotID), bytes, ttl)
	key := dayKey(availability.TrainerID, availability.StartTime)
	pipe.SAdd(ctx, key, availability.SlotID.String())
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save availability snapshot: %w", err)
	}
	return nil
}

func (i *AvailabilityIndex) ListByDay(ctx context.Context, trainerID uuid.UUID, day time.Time) ([]domain.SlotAvailability, error) {
	ids, err := i.client.SMembers(ctx, dayKey(trainerID, day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list day set: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, "availability:slot:"+id)
	}

	vals, err := i.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget availability snapshots: %w", err)
	}

	var results []domain.SlotAvailability
	for _, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue // snapshot expirou, o set do dia ainda aponta para ele
		}
		var doc snapshotDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		availability, err := doc.toDomain()
		if err != nil {
			continue
		}
		results = append(results, *availability)
	}
	return results, nil
}

func (d *snapshotDoc) toDomain() (*domain.SlotAvailability, error) {
	slotID, err := uuid.Parse(d.SlotID)
	if err != nil {
		return nil, fmt.Errorf("invalid slot id in snapshot: %w", err)
	}
	trainerID, err := uuid.Parse(d.TrainerID)
	if err != nil {
		return nil, fmt.Errorf("invalid trainer id in snapshot: %w", err)
	}
	classID, err := uuid.Parse(d.ClassID)
	if err != nil {
		return nil, fmt.Errorf("invalid class id in snapshot: %w", err)
	}
	return &domain.SlotAvailability{
		SlotID:    slotID,
		TrainerID: trainerID,
		ClassID:   classID,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		Capacity:  d.Capacity,
		Remaining: d.Remaining,
		UpdatedAt: d.UpdatedAt,
	}, nil
}
