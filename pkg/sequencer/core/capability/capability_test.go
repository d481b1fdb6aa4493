package capability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) SaveAudit(ctx context.Context, record *model.GraphRecomputeAudit) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockAudit) ListAuditsByJob(ctx context.Context, companyID, jobID string) ([]*model.GraphRecomputeAudit, error) {
	args := m.Called(ctx, companyID, jobID)
	return args.Get(0).([]*model.GraphRecomputeAudit), args.Error(1)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndAuthorize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := capability.NewIssuer(time.Minute, &mockAudit{}).WithClock(fixedClock(now))

	g, err := issuer.Issue(context.Background(), capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, now.Add(time.Minute), g.ExpiresAt)

	assert.NoError(t, g.Authorize(capability.ScopeRecomputeJobGraph, "c1", "j1", now))
	assert.NoError(t, issuer.Check(g, "c1", "j1"))

	cases := map[string]error{
		"other job":     g.Authorize(capability.ScopeRecomputeJobGraph, "c1", "j2", now),
		"other company": g.Authorize(capability.ScopeRecomputeJobGraph, "c2", "j1", now),
		"other scope":   g.Authorize("delete-job", "c1", "j1", now),
		"expired":       g.Authorize(capability.ScopeRecomputeJobGraph, "c1", "j1", now.Add(time.Minute)),
		"zero grant":    capability.Grant{}.Authorize(capability.ScopeRecomputeJobGraph, "c1", "j1", now),
	}
	for name, err := range cases {
		assert.ErrorIs(t, err, capability.ErrCapabilityDenied, name)
	}
}

func TestIssue_RejectsIncompleteRequests(t *testing.T) {
	issuer := capability.NewIssuer(time.Minute, &mockAudit{})
	ctx := context.Background()

	_, err := issuer.Issue(ctx, "other", "c1", "j1", "u1")
	assert.ErrorIs(t, err, capability.ErrCapabilityDenied)
	_, err = issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "", "j1", "u1")
	assert.ErrorIs(t, err, capability.ErrCapabilityDenied)
	_, err = issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "c1", "j1", "")
	assert.ErrorIs(t, err, capability.ErrCapabilityDenied)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = issuer.Issue(cancelled, capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecord(t *testing.T) {
	audit := &mockAudit{}
	issuer := capability.NewIssuer(time.Minute, audit)
	ctx := context.Background()
	g, err := issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	require.NoError(t, err)

	audit.On("SaveAudit", ctx, mock.MatchedBy(func(r *model.GraphRecomputeAudit) bool {
		return r.CapabilityID == g.ID && r.JobID == "j1" && r.ActingUserID == "u1" &&
			r.Action == model.AuditActionRecalculateDependencies && r.Outcome == model.AuditOutcomeSuccess
	})).Return(nil).Once()
	require.NoError(t, issuer.Record(ctx, g, model.AuditActionRecalculateDependencies, model.AuditOutcomeSuccess, "3 changed"))

	audit.On("SaveAudit", ctx, mock.Anything).Return(errors.New("disk full")).Once()
	assert.Error(t, issuer.Record(ctx, g, model.AuditActionPropagateRequirements, model.AuditOutcomeFailure, ""))
	audit.AssertExpectations(t)
}
