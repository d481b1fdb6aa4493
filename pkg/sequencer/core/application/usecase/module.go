package usecase

import (
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/dependency"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/orderstore"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/requirement"

	"go.uber.org/fx"
)

// NewIssuerFromConfig creates the capability issuer with the configured grant lifetime.
func NewIssuerFromConfig(cfg *config.Config, repo repository.SequencingRepository) *capability.Issuer {
	ttl := cfg.Sequencer.Capability.TTL()
	if ttl <= 0 {
		ttl = time.Minute
	}
	return capability.NewIssuer(ttl, repo)
}

// NewOrderStore creates the order store over the sequencing repository.
func NewOrderStore(repo repository.SequencingRepository) *orderstore.Store {
	return orderstore.NewStore(repo, repo)
}

// NewRecalculator creates the dependency recalculator over the sequencing repository.
func NewRecalculator(repo repository.SequencingRepository, issuer *capability.Issuer, tracer metrics.Tracer) *dependency.Recalculator {
	return dependency.NewRecalculator(repo, issuer, tracer)
}

// NewPropagator creates the requirement propagator over the sequencing repository.
func NewPropagator(repo repository.SequencingRepository, issuer *capability.Issuer, tracer metrics.Tracer) *requirement.Propagator {
	return requirement.NewPropagator(repo, issuer, tracer)
}

// Module is the Fx module for the sequencing core and the JobOperationService.
var Module = fx.Options(
	fx.Provide(NewIssuerFromConfig),
	fx.Provide(NewOrderStore),
	fx.Provide(NewRecalculator),
	fx.Provide(NewPropagator),
	fx.Provide(NewDefaultJobOperationService),
	fx.Provide(func(s *DefaultJobOperationService) JobOperationService { return s }),
)
