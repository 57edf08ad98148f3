package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealforge/governor/pkg/contracts"
)

func TestDefaultProfileValidates(t *testing.T) {
	profile, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "default", profile.Name)
	assert.Equal(t, 70.0, profile.Risk.GreenThreshold)
	assert.NotEmpty(t, profile.Triggers)

	_, err = NewFreezeTriggers(profile.Triggers)
	require.NoError(t, err, "shipped trigger expressions must compile")
}

func TestParseRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Parse([]byte("schema_version: \"2.0.0\"\nname: future\n"))
	require.True(t, contracts.IsKind(err, contracts.FaultValidation))

	_, err = Parse([]byte("schema_version: \"not-a-version\"\nname: broken\n"))
	require.True(t, contracts.IsKind(err, contracts.FaultValidation))
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse([]byte("schema_version: \"1.0.0\"\n"))
	require.True(t, contracts.IsKind(err, contracts.FaultValidation))
}

func TestParseRejectsUnknownReasonCode(t *testing.T) {
	doc := `
schema_version: "1.0.0"
name: bad-reason
triggers:
  - name: r1
    reason: NOT_A_REASON
    expression: risk.state == "RED"
`
	_, err := Parse([]byte(doc))
	require.True(t, contracts.IsKind(err, contracts.FaultValidation))
}

func TestParseDefaultsRiskPolicyWhenAbsent(t *testing.T) {
	profile, err := Parse([]byte("schema_version: \"1.0.0\"\nname: lean\n"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, profile.Risk.Strengths[contracts.StatusBuyerConfirmed])
}

func TestBrokenExpressionFailsAtLoad(t *testing.T) {
	_, err := NewFreezeTriggers([]TriggerRule{
		{Name: "broken", Reason: "RISK_RED", Expression: "risk.state =="},
	})
	require.True(t, contracts.IsKind(err, contracts.FaultValidation))
}

func TestTriggerFiresOnRedCommitDeal(t *testing.T) {
	profile, err := Default()
	require.NoError(t, err)
	ft, err := NewFreezeTriggers(profile.Triggers)
	require.NoError(t, err)

	deal := contracts.Deal{ID: "d1", Stage: contracts.StageCommit, Enforcement: contracts.EnforcementActive}

	reason, fired, err := ft.Evaluate(deal, contracts.RiskScore{Total: 20, State: contracts.RiskRed})
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, contracts.ReasonRiskRed, reason)

	_, fired, err = ft.Evaluate(deal, contracts.RiskScore{Total: 80, State: contracts.RiskGreen})
	require.NoError(t, err)
	assert.False(t, fired, "green score must not trip the freeze rule")
}

func TestSlippedCloseDateTrigger(t *testing.T) {
	profile, err := Default()
	require.NoError(t, err)
	ft, err := NewFreezeTriggers(profile.Triggers)
	require.NoError(t, err)

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ft.WithClock(func() time.Time { return now })

	past := now.Add(-10 * 24 * time.Hour)
	deal := contracts.Deal{ID: "d1", Stage: contracts.StageProposal, CloseDate: &past}

	reason, fired, err := ft.Evaluate(deal, contracts.RiskScore{Total: 15, State: contracts.RiskRed})
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, contracts.ReasonSlippedCloseDate, reason)
}

func TestFirstMatchingRuleWins(t *testing.T) {
	ft, err := NewFreezeTriggers([]TriggerRule{
		{Name: "first", Reason: "MANUAL_FREEZE", Expression: "risk.total < 50.0"},
		{Name: "second", Reason: "RISK_RED", Expression: "risk.state == \"RED\""},
	})
	require.NoError(t, err)

	reason, fired, err := ft.Evaluate(contracts.Deal{ID: "d1"}, contracts.RiskScore{Total: 10, State: contracts.RiskRed})
	require.NoError(t, err)
	require.True(t, fired)
	assert.Equal(t, contracts.ReasonManualFreeze, reason)
}
