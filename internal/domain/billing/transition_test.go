package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

func TestResolveTransition_NewAttach(t *testing.T) {
	target := monthlyProduct("pro", "plans", 30)

	tr, err := ResolveTransition(target, nil, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioNew, tr.Scenario)
	assert.False(t, tr.HasTransition())
	assert.Nil(t, tr.Current)
}

func TestResolveTransition_AddOnNeverTransitions(t *testing.T) {
	current := activeCustomerProduct("cp_1", monthlyProduct("basic", "plans", 10), testNow.AddDate(0, -1, 0))
	addOn := addOnProduct("seats", 5)

	tr, err := ResolveTransition(addOn, []*cusproduct.CustomerProduct{current}, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioNew, tr.Scenario)
	assert.Nil(t, tr.Current)
}

func TestResolveTransition_Upgrade(t *testing.T) {
	basic := monthlyProduct("basic", "plans", 10)
	pro := monthlyProduct("pro", "plans", 30)
	current := activeCustomerProduct("cp_1", basic, testNow.AddDate(0, -1, 0))

	tr, err := ResolveTransition(pro, []*cusproduct.CustomerProduct{current}, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioUpgrade, tr.Scenario)
	assert.Equal(t, types.TransitionTimingImmediate, tr.Timing)
	assert.Equal(t, "cp_1", tr.Current.ID)
}

func TestResolveTransition_Downgrade(t *testing.T) {
	pro := monthlyProduct("pro", "plans", 30)
	basic := monthlyProduct("basic", "plans", 10)
	current := activeCustomerProduct("cp_1", pro, testNow.AddDate(0, -1, 0))

	tr, err := ResolveTransition(basic, []*cusproduct.CustomerProduct{current}, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioDowngrade, tr.Scenario)
	assert.Equal(t, types.TransitionTimingEndOfCycle, tr.Timing)
}

func TestResolveTransition_EqualPriceIsEndOfCycle(t *testing.T) {
	current := activeCustomerProduct("cp_1", monthlyProduct("a", "plans", 20), testNow.AddDate(0, -1, 0))
	other := monthlyProduct("b", "plans", 20)

	tr, err := ResolveTransition(other, []*cusproduct.CustomerProduct{current}, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioDowngrade, tr.Scenario)
	assert.Equal(t, types.TransitionTimingEndOfCycle, tr.Timing)
}

func TestResolveTransition_DifferentGroupIsNew(t *testing.T) {
	current := activeCustomerProduct("cp_1", monthlyProduct("basic", "plans", 10), testNow.AddDate(0, -1, 0))
	other := monthlyProduct("insights", "analytics", 50)

	tr, err := ResolveTransition(other, []*cusproduct.CustomerProduct{current}, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioNew, tr.Scenario)
	assert.Nil(t, tr.Current)
}

func TestResolveTransition_EntityScopeSeparatesGroups(t *testing.T) {
	basic := monthlyProduct("basic", "plans", 10)
	pro := monthlyProduct("pro", "plans", 30)

	current := activeCustomerProduct("cp_1", basic, testNow.AddDate(0, -1, 0))
	current.EntityID = "seat_1"

	// Same group but a different entity scope: nothing to replace.
	tr, err := ResolveTransition(pro, []*cusproduct.CustomerProduct{current}, "seat_2", testNow)
	require.NoError(t, err)
	assert.Nil(t, tr.Current)

	// Matching scope replaces.
	tr, err = ResolveTransition(pro, []*cusproduct.CustomerProduct{current}, "seat_1", testNow)
	require.NoError(t, err)
	require.NotNil(t, tr.Current)
	assert.Equal(t, types.AttachScenarioUpgrade, tr.Scenario)
}

func TestResolveTransition_CarriesSupersededSchedule(t *testing.T) {
	pro := monthlyProduct("pro", "plans", 30)
	basic := monthlyProduct("basic", "plans", 10)
	enterprise := monthlyProduct("enterprise", "plans", 90)

	current := activeCustomerProduct("cp_1", pro, testNow.AddDate(0, -1, 0))
	pending := scheduledCustomerProduct("cp_2", basic, testNow.AddDate(0, 0, 16))

	tr, err := ResolveTransition(enterprise, []*cusproduct.CustomerProduct{current, pending}, "", testNow)
	require.NoError(t, err)

	assert.Equal(t, types.AttachScenarioUpgrade, tr.Scenario)
	require.NotNil(t, tr.Scheduled)
	assert.Equal(t, "cp_2", tr.Scheduled.ID)
}

func TestResolveTransition_PastDueCountsAsActive(t *testing.T) {
	basic := monthlyProduct("basic", "plans", 10)
	pro := monthlyProduct("pro", "plans", 30)

	current := activeCustomerProduct("cp_1", basic, testNow.AddDate(0, -1, 0))
	current.Status = types.CustomerProductStatusPastDue

	tr, err := ResolveTransition(pro, []*cusproduct.CustomerProduct{current}, "", testNow)
	require.NoError(t, err)

	require.NotNil(t, tr.Current)
	assert.Equal(t, types.AttachScenarioUpgrade, tr.Scenario)
}

func TestResolveTransition_DoubleActiveIsInconsistent(t *testing.T) {
	basic := monthlyProduct("basic", "plans", 10)
	pro := monthlyProduct("pro", "plans", 30)

	snapshot := []*cusproduct.CustomerProduct{
		activeCustomerProduct("cp_1", basic, testNow.AddDate(0, -2, 0)),
		activeCustomerProduct("cp_2", pro, testNow.AddDate(0, -1, 0)),
	}

	_, err := ResolveTransition(monthlyProduct("enterprise", "plans", 90), snapshot, "", testNow)
	require.Error(t, err)
	assert.True(t, ierr.IsInconsistentState(err))
}

func TestResolveTransition_DoubleScheduledIsInconsistent(t *testing.T) {
	basic := monthlyProduct("basic", "plans", 10)

	later := testNow.Add(24 * time.Hour)
	snapshot := []*cusproduct.CustomerProduct{
		scheduledCustomerProduct("cp_1", basic, later),
		scheduledCustomerProduct("cp_2", monthlyProduct("pro", "plans", 30), later),
	}

	_, err := ResolveTransition(monthlyProduct("enterprise", "plans", 90), snapshot, "", testNow)
	require.Error(t, err)
	assert.True(t, ierr.IsInconsistentState(err))
}
