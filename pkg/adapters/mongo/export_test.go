package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// ReplaceFlowData overwrites flow_data with an arbitrary document.
func (s *Store) ReplaceFlowData(ctx context.Context, id string, data any) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = s.flows.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"flow_data": data}})
	return err
}
