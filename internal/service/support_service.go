package service

import (
	"context"
	"log/slog"
	"strings"

	"supportbot/internal/orders"
	"supportbot/internal/prompt"
	"supportbot/internal/retrieval"
	"supportbot/internal/summarizer"
	supporterr "supportbot/pkg/errors"
)

// Retriever is the retrieval surface the service depends on.
type Retriever interface {
	EnsureReady(ctx context.Context) error
	Build(ctx context.Context, force bool) error
	QueryScored(ctx context.Context, text string, k int) ([]retrieval.Match, error)
	Current() *retrieval.Snapshot
}

// OrderLookup finds structured order records by id.
type OrderLookup interface {
	Lookup(id string) (orders.Order, bool, error)
}

// Reply is everything assembled for one support question.
type Reply struct {
	Question string
	OrderID  string
	Excerpts []retrieval.Match
	// Order is nil when no id was given or the id is unknown.
	Order  *orders.Order
	Prompt string
}

// Config tunes the service.
type Config struct {
	TopK             int
	OverviewSentence int
}

// SupportService answers support questions by retrieving policy excerpts,
// looking up the order and assembling the prompt for the answering model.
type SupportService struct {
	retriever  Retriever
	orders     OrderLookup
	summarizer *summarizer.FrequencySummarizer
	cfg        Config
	logger     *slog.Logger
	overview   string
}

// NewSupportService wires the service. orders may be nil when no order
// store is configured.
func NewSupportService(r Retriever, o OrderLookup, cfg Config, logger *slog.Logger) *SupportService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.OverviewSentence <= 0 {
		cfg.OverviewSentence = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SupportService{
		retriever:  r,
		orders:     o,
		summarizer: summarizer.NewFrequencySummarizer(),
		cfg:        cfg,
		logger:     logger,
	}
}

// Start makes the index ready and computes the corpus overview.
func (s *SupportService) Start(ctx context.Context) error {
	if err := s.retriever.EnsureReady(ctx); err != nil {
		return err
	}
	s.refreshOverview()
	return nil
}

// Rebuild forces a fresh index build from the corpus source.
func (s *SupportService) Rebuild(ctx context.Context) error {
	if err := s.retriever.Build(ctx, true); err != nil {
		return err
	}
	s.refreshOverview()
	return nil
}

// Overview is a short summary of the indexed policy corpus.
func (s *SupportService) Overview() string { return s.overview }

// DocumentCount reports how many policy paragraphs are indexed.
func (s *SupportService) DocumentCount() int {
	if snap := s.retriever.Current(); snap != nil {
		return snap.Len()
	}
	return 0
}

// Ask retrieves the top policy excerpts for question, looks up orderID
// when given, and renders the prompt.
func (s *SupportService) Ask(ctx context.Context, question, orderID string) (*Reply, error) {
	question = strings.TrimSpace(question)
	orderID = strings.TrimSpace(orderID)
	if question == "" {
		return nil, supporterr.New(supporterr.CodeQueryInvalid, "question is empty")
	}

	matches, err := s.retriever.QueryScored(ctx, question, s.cfg.TopK)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Question: question, OrderID: orderID, Excerpts: matches}
	if orderID != "" && s.orders != nil {
		o, ok, err := s.orders.Lookup(orderID)
		if err != nil {
			return nil, err
		}
		if ok {
			reply.Order = &o
		}
	}

	excerpts := make([]string, len(matches))
	for i, m := range matches {
		excerpts[i] = m.Text
	}
	reply.Prompt, err = prompt.Build(prompt.Input{
		Excerpts: excerpts,
		Order:    reply.Order,
		OrderID:  orderID,
		Question: question,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("answered question", "excerpts", len(matches), "order_found", reply.Order != nil)
	return reply, nil
}

func (s *SupportService) refreshOverview() {
	snap := s.retriever.Current()
	if snap == nil {
		s.overview = ""
		return
	}
	s.overview = s.summarizer.Summarize(strings.Join(snap.Docs(), "\n"), s.cfg.OverviewSentence)
}
