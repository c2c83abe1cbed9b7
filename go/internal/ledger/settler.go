package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SettlerConfig tunes the settlement worker.
type SettlerConfig struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultSettlerConfig returns settlement worker defaults.
func DefaultSettlerConfig() SettlerConfig {
	return SettlerConfig{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

type jobKind int

const (
	jobSettle jobKind = iota
	jobRefund
)

type settleJob struct {
	kind      jobKind
	contestID uuid.UUID
	winnerID  uuid.UUID
	amount    int
	attempts  int
}

// Settler resolves wagers in the background. Enqueue methods never block the
// caller; a full queue or a database hiccup is retried by the worker, not
// surfaced to contest resolution.
type Settler struct {
	repo   *Repository
	config SettlerConfig
	jobs   chan settleJob

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSettler creates a settlement worker over the ledger repository.
func NewSettler(repo *Repository, cfg SettlerConfig) *Settler {
	return &Settler{
		repo:     repo,
		config:   cfg,
		jobs:     make(chan settleJob, cfg.QueueSize),
		stopChan: make(chan struct{}),
	}
}

// Start launches the settlement worker.
func (s *Settler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("settler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	log.Info().
		Int("queue_size", s.config.QueueSize).
		Int("max_retries", s.config.MaxRetries).
		Msg("wager settler started")
	return nil
}

// Stop drains the worker.
func (s *Settler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("settler not running")
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()

	log.Info().Msg("wager settler stopped")
	return nil
}

// Escrow debits the identity's wallet and holds the amount for the contest.
// Unlike settlement this is synchronous: an invite must fail up front when
// the challenger cannot cover the wager.
func (s *Settler) Escrow(ctx context.Context, contestID, identityID uuid.UUID, amount int) error {
	return s.repo.HoldEscrow(ctx, contestID, identityID, amount)
}

// Settle queues the contest's escrow pool for release to the winner.
func (s *Settler) Settle(contestID, winnerID uuid.UUID, amount int) {
	s.enqueue(settleJob{kind: jobSettle, contestID: contestID, winnerID: winnerID, amount: amount})
}

// Refund queues the contest's escrows for return to their owners.
func (s *Settler) Refund(contestID uuid.UUID, amount int) {
	s.enqueue(settleJob{kind: jobRefund, contestID: contestID, amount: amount})
}

func (s *Settler) enqueue(job settleJob) {
	select {
	case s.jobs <- job:
	default:
		log.Error().
			Str("contest_id", job.contestID.String()).
			Msg("settlement queue full, dropping job")
	}
}

func (s *Settler) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case job := <-s.jobs:
			s.process(ctx, job)
		}
	}
}

func (s *Settler) process(ctx context.Context, job settleJob) {
	var err error
	switch job.kind {
	case jobSettle:
		err = s.repo.ReleaseToWinner(ctx, job.contestID, job.winnerID)
	case jobRefund:
		err = s.repo.RefundAll(ctx, job.contestID)
	}
	if err == nil {
		log.Debug().
			Str("contest_id", job.contestID.String()).
			Int("amount", job.amount).
			Msg("wager resolved")
		return
	}

	job.attempts++
	if job.attempts >= s.config.MaxRetries {
		log.Error().Err(err).
			Str("contest_id", job.contestID.String()).
			Int("attempts", job.attempts).
			Msg("settlement failed permanently")
		return
	}

	log.Warn().Err(err).
		Str("contest_id", job.contestID.String()).
		Int("attempt", job.attempts).
		Msg("settlement failed, retrying")

	select {
	case <-time.After(s.config.RetryDelay):
	case <-ctx.Done():
		return
	case <-s.stopChan:
		return
	}
	s.enqueue(job)
}
