package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/saptiva-ai/alethia-deepresearch/internal/types"
)

const (
	tasksCollection   = "tasks"
	reportsCollection = "reports"
	logsCollection    = "logs"
)

// Mongo persists tasks, reports, and run logs in MongoDB.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri and prepares the collections. A unique index on
// task_id makes task and report saves idempotent upserts.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStore, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping: %v", ErrStore, err)
	}

	m := &Mongo{client: client, db: client.Database(database)}

	taskIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "task_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, coll := range []string{tasksCollection, reportsCollection} {
		if _, err := m.db.Collection(coll).Indexes().CreateOne(ctx, taskIDIndex); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("%w: index %s: %v", ErrStore, coll, err)
		}
	}
	return m, nil
}

func (m *Mongo) SaveTask(ctx context.Context, rec types.TaskRecord) error {
	_, err := m.db.Collection(tasksCollection).ReplaceOne(ctx,
		bson.M{"task_id": rec.TaskID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: save task %s: %v", ErrStore, rec.TaskID, err)
	}
	return nil
}

func (m *Mongo) GetTask(ctx context.Context, taskID string) (types.TaskRecord, bool, error) {
	var rec types.TaskRecord
	err := m.db.Collection(tasksCollection).FindOne(ctx, bson.M{"task_id": taskID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return types.TaskRecord{}, false, nil
	}
	if err != nil {
		return types.TaskRecord{}, false, fmt.Errorf("%w: get task %s: %v", ErrStore, taskID, err)
	}
	return rec, true, nil
}

func (m *Mongo) SaveReport(ctx context.Context, rep Report) error {
	_, err := m.db.Collection(reportsCollection).ReplaceOne(ctx,
		bson.M{"task_id": rep.TaskID}, rep, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: save report %s: %v", ErrStore, rep.TaskID, err)
	}
	return nil
}

func (m *Mongo) GetReport(ctx context.Context, taskID string) (Report, bool, error) {
	var rep Report
	err := m.db.Collection(reportsCollection).FindOne(ctx, bson.M{"task_id": taskID}).Decode(&rep)
	if err == mongo.ErrNoDocuments {
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, fmt.Errorf("%w: get report %s: %v", ErrStore, taskID, err)
	}
	return rep, true, nil
}

func (m *Mongo) AppendLog(ctx context.Context, ev types.ProgressEvent) error {
	doc := bson.M{
		"task_id":    ev.TaskID,
		"timestamp":  ev.Timestamp,
		"event_type": string(ev.EventType),
		"message":    ev.Message,
		"data":       ev.Data,
	}
	if _, err := m.db.Collection(logsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%w: append log: %v", ErrStore, err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStore, err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
