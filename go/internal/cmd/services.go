package main

import (
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/keyduel/keyduel/go/internal/contest"
	"github.com/keyduel/keyduel/go/internal/contest/stream"
	"github.com/keyduel/keyduel/go/internal/identity"
	"github.com/keyduel/keyduel/go/internal/ledger"
	"github.com/keyduel/keyduel/go/internal/matchstore"
	"github.com/keyduel/keyduel/go/internal/passages"
)

// Services bundles every application service the server composes.
type Services struct {
	Contests  *contest.App
	Identity  *identity.App
	Ledger    *ledger.Repository
	Settler   *ledger.Settler
	Matches   *matchstore.Repository
	Publisher *stream.Publisher
}

func setupServices(db *sql.DB, publisher *stream.Publisher, config *Config) *Services {
	clock := clockwork.NewRealClock()

	matchRepo := matchstore.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	settler := ledger.NewSettler(ledgerRepo, ledger.DefaultSettlerConfig())
	identityApp := identity.NewApp(identity.NewRepository(db))

	seed := config.Passages.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	passagePool := passages.NewPool(config.Passages.Texts, seed)

	contestApp := contest.NewApp(
		clock,
		publisher,
		matchRepo,
		settler,
		identityApp,
		passagePool,
		config.contestSettings(),
	)

	return &Services{
		Contests:  contestApp,
		Identity:  identityApp,
		Ledger:    ledgerRepo,
		Settler:   settler,
		Matches:   matchRepo,
		Publisher: publisher,
	}
}
