package mongo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chatflow-ai/chatflow/internal/testutils"
	"github.com/chatflow-ai/chatflow/pkg/adapters/mongo"
	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
)

type MongoStoreTestSuite struct {
	suite.Suite
	uri   string
	store *mongo.Store
}

func TestMongoStoreTestSuite(t *testing.T) {
	s := new(MongoStoreTestSuite)
	s.uri = testutils.MongoURI(t)
	suite.Run(t, s)
}

// SetupTest gives every test its own empty database.
func (s *MongoStoreTestSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := fmt.Sprintf("chatflow_test_%d", time.Now().UnixNano())
	store, err := mongo.Connect(ctx, s.uri, db)
	s.Require().NoError(err)
	s.Require().NoError(store.EnsureIndexes(ctx))
	s.store = store
}

func (s *MongoStoreTestSuite) TearDownTest() {
	_ = s.store.Close(context.Background())
}

func (s *MongoStoreTestSuite) TestContract() {
	ports.RunStoreContract(s.T(), s.store)
}

func (s *MongoStoreTestSuite) TestDuplicatePhone() {
	ctx := context.Background()
	_, err := s.store.InsertContact(ctx, domain.NewLead("+15550001234", time.Now()))
	s.Require().NoError(err)

	_, err = s.store.InsertContact(ctx, domain.NewLead("+15550001234", time.Now()))
	s.ErrorIs(err, domain.ErrContactExists)
}

func (s *MongoStoreTestSuite) TestUpdateUnknownContact() {
	err := s.store.UpdateContactState(context.Background(), "64b7f0c2a1b2c3d4e5f60718", nil, time.Now())
	s.ErrorIs(err, domain.ErrContactNotFound)
}

func (s *MongoStoreTestSuite) TestLenientFlowData() {
	ctx := context.Background()
	saved, err := s.store.SaveFlow(ctx, &domain.Flow{Name: "seed", IsActive: true})
	s.Require().NoError(err)

	// Rewrite flow_data the way a hand-edited document might look.
	raw := bson.M{
		"nodes": bson.A{
			bson.M{"id": 1, "type": "textMessage", "data": bson.M{"message": "Hi!"}},
			bson.M{"id": "2", "type": "aiResponse", "data": bson.M{"prompt": "Help."}},
		},
		"edges": bson.A{bson.M{"id": "e1", "source": 1, "target": "2"}},
	}
	s.Require().NoError(s.store.ReplaceFlowData(ctx, saved.ID, raw))

	flow, err := s.store.ActiveFlow(ctx)
	s.Require().NoError(err)
	s.Require().Len(flow.Data.Nodes, 2)
	s.Equal("1", flow.Data.Nodes[0].ID)
	s.Equal("Hi!", flow.Data.Nodes[0].String(domain.DataKeyMessage))
	s.Equal([]domain.Edge{{ID: "e1", Source: "1", Target: "2"}}, flow.Data.Edges)
}
