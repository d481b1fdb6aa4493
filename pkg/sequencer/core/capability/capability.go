// Package capability issues and checks graph-recompute grants.
//
// Recomputing a job's dependency graph or requirements reads and writes every
// operation of the job regardless of who asked for the mutation. That privilege is
// carried by an explicit Grant instead of an elevated database client. A Grant is
// issued by the use case layer after the request passed its permission gate, is
// bound to one tenant and job, expires quickly and every use is recorded.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/google/uuid"
)

// Scope names what a grant allows.
type Scope string

// ScopeRecomputeJobGraph allows whole-job dependency recalculation and requirement propagation.
const ScopeRecomputeJobGraph Scope = "recompute-job-graph"

// ErrCapabilityDenied is returned when a grant does not authorize the requested action.
var ErrCapabilityDenied = errors.New("capability denied")

// Grant is a short-lived token authorizing one scope on one job.
type Grant struct {
	ID           string
	Scope        Scope
	CompanyID    string
	JobID        string
	ActingUserID string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Authorize checks that g covers scope for companyID/jobID at now.
func (g Grant) Authorize(scope Scope, companyID, jobID string, now time.Time) error {
	switch {
	case g.ID == "":
		return fmt.Errorf("%w: grant was not issued", ErrCapabilityDenied)
	case g.Scope != scope:
		return fmt.Errorf("%w: grant scope %q does not cover %q", ErrCapabilityDenied, g.Scope, scope)
	case g.CompanyID != companyID || g.JobID != jobID:
		return fmt.Errorf("%w: grant %s is bound to job %s/%s", ErrCapabilityDenied, g.ID, g.CompanyID, g.JobID)
	case !now.Before(g.ExpiresAt):
		return fmt.Errorf("%w: grant %s expired at %s", ErrCapabilityDenied, g.ID, g.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Issuer creates grants and records their use.
type Issuer struct {
	ttl   time.Duration
	audit repository.Audit
	now   func() time.Time
}

// NewIssuer creates an Issuer whose grants live for ttl.
func NewIssuer(ttl time.Duration, audit repository.Audit) *Issuer {
	return &Issuer{ttl: ttl, audit: audit, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Now returns the issuer's current time.
func (i *Issuer) Now() time.Time {
	return i.now()
}

// Issue creates a grant for scope on companyID/jobID, acting for actingUserID.
func (i *Issuer) Issue(ctx context.Context, scope Scope, companyID, jobID, actingUserID string) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	if scope != ScopeRecomputeJobGraph {
		return Grant{}, fmt.Errorf("%w: unknown scope %q", ErrCapabilityDenied, scope)
	}
	if companyID == "" || jobID == "" || actingUserID == "" {
		return Grant{}, fmt.Errorf("%w: company, job and acting user are required", ErrCapabilityDenied)
	}
	now := i.now()
	g := Grant{
		ID:           uuid.NewString(),
		Scope:        scope,
		CompanyID:    companyID,
		JobID:        jobID,
		ActingUserID: actingUserID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(i.ttl),
	}
	logger.Debugf("Issued %s grant %s for job %s (user %s).", scope, g.ID, jobID, actingUserID)
	return g, nil
}

// Check authorizes g for the graph-recompute scope on companyID/jobID.
func (i *Issuer) Check(g Grant, companyID, jobID string) error {
	return g.Authorize(ScopeRecomputeJobGraph, companyID, jobID, i.now())
}

// Record writes an audit entry for one use of g. A failure to write the audit
// entry is logged and returned; callers decide whether it is fatal.
func (i *Issuer) Record(ctx context.Context, g Grant, action model.AuditAction, outcome model.AuditOutcome, detail string) error {
	record := &model.GraphRecomputeAudit{
		ID:           uuid.NewString(),
		CapabilityID: g.ID,
		CompanyID:    g.CompanyID,
		JobID:        g.JobID,
		ActingUserID: g.ActingUserID,
		Action:       action,
		Outcome:      outcome,
		Detail:       detail,
		CreatedAt:    i.now(),
	}
	if err := i.audit.SaveAudit(ctx, record); err != nil {
		logger.Errorf("Failed to record %s audit for grant %s: %v", action, g.ID, err)
		return err
	}
	return nil
}
