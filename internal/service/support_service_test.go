package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportbot/internal/embedding/hashed"
	"supportbot/internal/orders"
	"supportbot/internal/retrieval"
	supporterr "supportbot/pkg/errors"
)

const policyDocs = `Refund policy: missing items are refunded within 24 hours.

Cancellation is free until the restaurant accepts the order.

Couriers deliver between 10am and 11pm every day.

Allergen information is listed on each restaurant menu.`

type fakeOrders map[string]orders.Order

func (f fakeOrders) Lookup(id string) (orders.Order, bool, error) {
	o, ok := f[id]
	return o, ok, nil
}

func newService(t *testing.T, lookup OrderLookup, topK int) (*SupportService, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := retrieval.Config{
		CorpusPath:   filepath.Join(dir, "support_docs.txt"),
		IndexPath:    filepath.Join(dir, "faiss_index.bin"),
		MetadataPath: filepath.Join(dir, "faiss_meta.json"),
	}
	require.NoError(t, os.WriteFile(cfg.CorpusPath, []byte(policyDocs), 0o644))
	r := retrieval.New(cfg, hashed.New(0))
	svc := NewSupportService(r, lookup, Config{TopK: topK}, nil)
	require.NoError(t, svc.Start(context.Background()))
	return svc, cfg.CorpusPath
}

func TestAsk_WithKnownOrder(t *testing.T) {
	lookup := fakeOrders{"A100": {ID: "A100", Fields: []orders.Field{
		{Name: "order_id", Value: "A100"},
		{Name: "status", Value: "delivered"},
	}}}
	svc, _ := newService(t, lookup, 2)

	reply, err := svc.Ask(context.Background(), "  refund for missing items ", " A100 ")
	require.NoError(t, err)
	require.Len(t, reply.Excerpts, 2)
	assert.Contains(t, reply.Excerpts[0].Text, "Refund policy")
	assert.Equal(t, "refund for missing items", reply.Question)
	assert.Equal(t, "A100", reply.OrderID)
	require.NotNil(t, reply.Order)
	assert.Contains(t, reply.Prompt, "status: delivered")
	assert.Contains(t, reply.Prompt, "Refund policy: missing items")
	assert.Contains(t, reply.Prompt, "User question:\nrefund for missing items")
}

func TestAsk_UnknownOrder(t *testing.T) {
	svc, _ := newService(t, fakeOrders{}, 3)

	reply, err := svc.Ask(context.Background(), "when do couriers deliver", "Z9")
	require.NoError(t, err)
	assert.Nil(t, reply.Order)
	assert.Len(t, reply.Excerpts, 3)
	assert.Contains(t, reply.Prompt, "No order found with id Z9.")
}

func TestAsk_NoOrderStore(t *testing.T) {
	svc, _ := newService(t, nil, 0)

	reply, err := svc.Ask(context.Background(), "cancellation", "")
	require.NoError(t, err)
	assert.Len(t, reply.Excerpts, 3, "top_k defaults to 3")
	assert.Contains(t, reply.Prompt, "No order provided.")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc, _ := newService(t, nil, 3)

	_, err := svc.Ask(context.Background(), "   ", "A1")
	require.Error(t, err)
	assert.True(t, supporterr.IsInvalidInput(err))
}

func TestStart_OverviewAndCount(t *testing.T) {
	svc, _ := newService(t, nil, 3)

	assert.Equal(t, 4, svc.DocumentCount())
	assert.NotEmpty(t, svc.Overview())
}

func TestRebuild_PicksUpCorpusChanges(t *testing.T) {
	svc, corpusPath := newService(t, nil, 10)
	require.Equal(t, 4, svc.DocumentCount())

	require.NoError(t, os.WriteFile(corpusPath, []byte("Tips go to couriers.\n\nVouchers expire after 30 days."), 0o644))
	require.NoError(t, svc.Rebuild(context.Background()))

	assert.Equal(t, 2, svc.DocumentCount())
	reply, err := svc.Ask(context.Background(), "vouchers", "")
	require.NoError(t, err)
	assert.Len(t, reply.Excerpts, 2)
}
