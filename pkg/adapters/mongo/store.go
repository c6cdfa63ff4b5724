// Package mongo implements ports.Store on MongoDB.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chatflow-ai/chatflow/internal/compiler"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default names.
const (
	DefaultDatabase       = "chatflow_ai"
	ContactsCollection    = "contacts"
	FlowsCollection       = "flows"
	MessageLogsCollection = "message_logs"
)

var _ ports.Store = (*Store)(nil)

// Store keeps contacts, flows and message logs in three collections.
type Store struct {
	client   *mongo.Client
	contacts *mongo.Collection
	flows    *mongo.Collection
	logs     *mongo.Collection
}

// New creates a Store on an existing client. dbName defaults to DefaultDatabase.
func New(client *mongo.Client, dbName string) *Store {
	if dbName == "" {
		dbName = DefaultDatabase
	}
	db := client.Database(dbName)
	return &Store{
		client:   client,
		contacts: db.Collection(ContactsCollection),
		flows:    db.Collection(FlowsCollection),
		logs:     db.Collection(MessageLogsCollection),
	}
}

// Connect dials uri, verifies the connection and returns a Store.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	s := New(client, dbName)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.contacts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone_number", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("contacts index: %w", err)
	}
	if _, err := s.flows.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_active", Value: 1}},
	}); err != nil {
		return fmt.Errorf("flows index: %w", err)
	}
	if _, err := s.logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "contact_id", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		return fmt.Errorf("message_logs index: %w", err)
	}
	return nil
}

type contactDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Name              string             `bson:"name"`
	PhoneNumber       string             `bson:"phone_number"`
	Tags              []string           `bson:"tags"`
	CurrentFlowNodeID *string            `bson:"current_flow_node_id"`
	LastActive        time.Time          `bson:"last_active"`
}

func (d contactDoc) toDomain() *domain.Contact {
	return &domain.Contact{
		ID:                d.ID.Hex(),
		Name:              d.Name,
		PhoneNumber:       d.PhoneNumber,
		Tags:              d.Tags,
		CurrentFlowNodeID: d.CurrentFlowNodeID,
		LastActive:        d.LastActive,
	}
}

type flowDoc struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty"`
	Name     string              `bson:"name"`
	Data     domain.FlowDocument `bson:"flow_data"`
	IsActive bool                `bson:"is_active"`
}

// rawFlowDoc defers flow_data decoding so hand-edited documents are read leniently.
type rawFlowDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Name     string             `bson:"name"`
	Data     bson.Raw           `bson:"flow_data"`
	IsActive bool               `bson:"is_active"`
}

type logDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ContactID  primitive.ObjectID `bson:"contact_id"`
	FromNumber string             `bson:"from_number"`
	Direction  string             `bson:"direction"`
	Text       string             `bson:"text"`
	Timestamp  time.Time          `bson:"timestamp"`
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", id, err)
	}
	return oid, nil
}

// ContactByPhone finds a contact by phone number.
func (s *Store) ContactByPhone(ctx context.Context, phone string) (*domain.Contact, error) {
	var doc contactDoc
	err := s.contacts.FindOne(ctx, bson.M{"phone_number": phone}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// InsertContact stores a new contact and returns it with its assigned ID.
func (s *Store) InsertContact(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	doc := contactDoc{
		ID:                primitive.NewObjectID(),
		Name:              contact.Name,
		PhoneNumber:       contact.PhoneNumber,
		Tags:              contact.Tags,
		CurrentFlowNodeID: contact.CurrentFlowNodeID,
		LastActive:        contact.LastActive,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if _, err := s.contacts.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrContactExists
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

// UpdateContactState sets the contact's position and last-active time.
func (s *Store) UpdateContactState(ctx context.Context, contactID string, nodeID *string, at time.Time) error {
	oid, err := objectID(contactID)
	if err != nil {
		return err
	}
	res, err := s.contacts.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{
			"current_flow_node_id": nodeID,
			"last_active":          at,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

// ActiveFlow returns the flow flagged active.
func (s *Store) ActiveFlow(ctx context.Context) (*domain.Flow, error) {
	var doc rawFlowDoc
	err := s.flows.FindOne(ctx, bson.M{"is_active": true}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNoActiveFlow
		}
		return nil, err
	}

	data, err := decodeFlowData(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", doc.ID.Hex(), err)
	}
	return &domain.Flow{
		ID:       doc.ID.Hex(),
		Name:     doc.Name,
		Data:     data,
		IsActive: doc.IsActive,
	}, nil
}

// decodeFlowData converts stored flow_data into a FlowDocument.
// Values go through relaxed extended JSON so numbers and strings are
// accepted interchangeably for ids.
func decodeFlowData(raw bson.Raw) (domain.FlowDocument, error) {
	if len(raw) == 0 {
		return domain.FlowDocument{}, nil
	}
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return domain.FlowDocument{}, fmt.Errorf("flow_data: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(ext, &m); err != nil {
		return domain.FlowDocument{}, fmt.Errorf("flow_data: %w", err)
	}
	return compiler.Decode(m)
}

// SaveFlow inserts or replaces a flow. Activating a flow deactivates every other one.
func (s *Store) SaveFlow(ctx context.Context, flow *domain.Flow) (*domain.Flow, error) {
	doc := flowDoc{
		ID:       primitive.NewObjectID(),
		Name:     flow.Name,
		Data:     flow.Data,
		IsActive: flow.IsActive,
	}
	if flow.ID != "" {
		oid, err := objectID(flow.ID)
		if err != nil {
			return nil, err
		}
		doc.ID = oid
	}

	if doc.IsActive {
		if _, err := s.flows.UpdateMany(ctx,
			bson.M{"is_active": true, "_id": bson.M{"$ne": doc.ID}},
			bson.M{"$set": bson.M{"is_active": false}},
		); err != nil {
			return nil, fmt.Errorf("deactivate flows: %w", err)
		}
	}

	if _, err := s.flows.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return nil, err
	}

	saved := *flow
	saved.ID = doc.ID.Hex()
	return &saved, nil
}

// AppendMessageLog inserts one log entry.
func (s *Store) AppendMessageLog(ctx context.Context, entry *domain.MessageLog) error {
	contactID, err := objectID(entry.ContactID)
	if err != nil {
		return err
	}
	_, err = s.logs.InsertOne(ctx, logDoc{
		ID:         primitive.NewObjectID(),
		ContactID:  contactID,
		FromNumber: entry.FromNumber,
		Direction:  string(entry.Direction),
		Text:       entry.Text,
		Timestamp:  entry.Timestamp,
	})
	return err
}

// RecentLogs returns up to limit entries for the contact, newest first.
func (s *Store) RecentLogs(ctx context.Context, contactID string, limit int) ([]domain.MessageLog, error) {
	oid, err := objectID(contactID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.logs.Find(ctx, bson.M{"contact_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.MessageLog
	for cur.Next(ctx) {
		var doc logDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domain.MessageLog{
			ID:         doc.ID.Hex(),
			ContactID:  doc.ContactID.Hex(),
			FromNumber: doc.FromNumber,
			Direction:  domain.Direction(doc.Direction),
			Text:       doc.Text,
			Timestamp:  doc.Timestamp,
		})
	}
	return out, cur.Err()
}
