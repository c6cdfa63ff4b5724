package ports

import (
	"context"
	"testing"
	"time"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract. The store must start empty.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("No Active Flow", func(t *testing.T) {
		_, err := store.ActiveFlow(ctx)
		assert.ErrorIs(t, err, domain.ErrNoActiveFlow)
	})

	t.Run("Contact Not Found", func(t *testing.T) {
		_, err := store.ContactByPhone(ctx, "+10000000000")
		assert.ErrorIs(t, err, domain.ErrContactNotFound)
	})

	t.Run("Insert and Find Contact", func(t *testing.T) {
		created, err := store.InsertContact(ctx, domain.NewLead("+15550000001", base))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID, "InsertContact should assign an ID")

		found, err := store.ContactByPhone(ctx, "+15550000001")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "WA +15550000001", found.Name)
		assert.Equal(t, []string{domain.TagNewLead}, found.Tags)
		assert.Nil(t, found.CurrentFlowNodeID)
	})

	t.Run("Update Contact State", func(t *testing.T) {
		created, err := store.InsertContact(ctx, domain.NewLead("+15550000002", base))
		require.NoError(t, err)

		node := "n2"
		later := base.Add(time.Minute)
		require.NoError(t, store.UpdateContactState(ctx, created.ID, &node, later))

		found, err := store.ContactByPhone(ctx, "+15550000002")
		require.NoError(t, err)
		require.NotNil(t, found.CurrentFlowNodeID)
		assert.Equal(t, "n2", *found.CurrentFlowNodeID)
		assert.True(t, later.Equal(found.LastActive), "LastActive = %v, want %v", found.LastActive, later)

		// Clearing the position is a valid write (dead end).
		require.NoError(t, store.UpdateContactState(ctx, created.ID, nil, later.Add(time.Minute)))
		found, err = store.ContactByPhone(ctx, "+15550000002")
		require.NoError(t, err)
		assert.Nil(t, found.CurrentFlowNodeID)
	})

	t.Run("Single Active Flow", func(t *testing.T) {
		first, err := store.SaveFlow(ctx, &domain.Flow{
			Name:     "first",
			IsActive: true,
			Data: domain.FlowDocument{
				Nodes: []domain.Node{{ID: "a", Type: domain.NodeTypeText, Data: map[string]any{"message": "A"}}},
			},
		})
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)

		active, err := store.ActiveFlow(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, active.ID)
		require.Len(t, active.Data.Nodes, 1)
		assert.Equal(t, "A", active.Data.Nodes[0].String(domain.DataKeyMessage))

		second, err := store.SaveFlow(ctx, &domain.Flow{
			Name:     "second",
			IsActive: true,
			Data: domain.FlowDocument{
				Nodes: []domain.Node{{ID: "b", Type: domain.NodeTypeText}, {ID: "c", Type: domain.NodeTypeAI}},
				Edges: []domain.Edge{{Source: "b", Target: "c"}},
			},
		})
		require.NoError(t, err)

		active, err = store.ActiveFlow(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID, "activating a flow must deactivate the others")
		assert.Equal(t, []domain.Edge{{Source: "b", Target: "c"}}, active.Data.Edges)
	})

	t.Run("Recent Logs Newest First", func(t *testing.T) {
		contact, err := store.InsertContact(ctx, domain.NewLead("+15550000003", base))
		require.NoError(t, err)
		other, err := store.InsertContact(ctx, domain.NewLead("+15550000004", base))
		require.NoError(t, err)

		for i, text := range []string{"one", "two", "three"} {
			dir := domain.DirectionInbound
			if i%2 == 1 {
				dir = domain.DirectionOutbound
			}
			require.NoError(t, store.AppendMessageLog(ctx, &domain.MessageLog{
				ContactID:  contact.ID,
				FromNumber: contact.PhoneNumber,
				Direction:  dir,
				Text:       text,
				Timestamp:  base.Add(time.Duration(i) * time.Second),
			}))
		}
		require.NoError(t, store.AppendMessageLog(ctx, &domain.MessageLog{
			ContactID: other.ID, Direction: domain.DirectionInbound, Text: "noise", Timestamp: base.Add(time.Hour),
		}))

		logs, err := store.RecentLogs(ctx, contact.ID, 2)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "three", logs[0].Text)
		assert.Equal(t, "two", logs[1].Text)
		assert.Equal(t, domain.DirectionOutbound, logs[1].Direction)

		logs, err = store.RecentLogs(ctx, contact.ID, 10)
		require.NoError(t, err)
		assert.Len(t, logs, 3, "limit is a cap, not a guarantee")
	})
}
