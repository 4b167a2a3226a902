//go:build integration

package activity_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"vaultdao/internal/activity"
	"vaultdao/internal/domain"
	"vaultdao/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redpanda := containers.NewRedpandaContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pub, err := activity.NewKafkaPublisher(ctx, []string{redpanda.Broker}, "vault-activity", logger)
	require.NoError(t, err)
	t.Cleanup(pub.Close)

	rec := domain.VaultActivity{
		ID:        "e1",
		EventID:   "e1",
		Type:      domain.TypeProposalExecuted,
		Timestamp: time.Now().UTC(),
		Ledger:    1042,
		Actor:     "GALICE",
		Details:   domain.ProposalExecutedDetails{ProposalID: 7, Recipient: "GDEV", Amount: decimal.NewFromInt(500)},
		TxHash:    "deadbeef",
	}
	require.NoError(t, pub.Publish(ctx, rec))
	// Same event id again; consumers dedupe by key, the broker keeps both.
	require.NoError(t, pub.Publish(ctx, rec))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Broker),
		kgo.ConsumeTopics("vault-activity"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < 2 {
		fetches := consumer.PollFetches(deadline)
		require.NoError(t, fetches.Err())
		records = append(records, fetches.Records()...)
	}

	require.Equal(t, []byte("e1"), records[0].Key)

	var envelope struct {
		EventID string          `json:"event_id"`
		Type    string          `json:"type"`
		Ledger  uint64          `json:"ledger"`
		TxHash  string          `json:"tx_hash"`
		Details json.RawMessage `json:"details"`
	}
	require.NoError(t, json.Unmarshal(records[0].Value, &envelope))
	require.Equal(t, "e1", envelope.EventID)
	require.Equal(t, string(domain.TypeProposalExecuted), envelope.Type)
	require.Equal(t, uint64(1042), envelope.Ledger)
	require.Equal(t, "deadbeef", envelope.TxHash)

	var details struct {
		ProposalID uint64 `json:"proposal_id"`
	}
	require.NoError(t, json.Unmarshal(envelope.Details, &details))
	require.Equal(t, uint64(7), details.ProposalID)
}
