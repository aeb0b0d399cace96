package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/internal/directory/models"
	"reunite/pkg/domain"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func record(hospital domain.HospitalID, at time.Time, history ...domain.HospitalID) *models.LocationRecord {
	r := models.NewLocationRecord("P-1", hospital, "dr.a", models.StatusStable, hospital, at)
	r.TransferHistory = append([]domain.HospitalID{}, history...)
	return r
}

func TestLocation_NewestLocationWins(t *testing.T) {
	local := record("H1", t0)
	remote := record("H2", t0.Add(time.Minute))

	res := Location(local, remote)

	assert.True(t, res.LocationChanged)
	assert.Equal(t, domain.HospitalID("H2"), res.Record.HospitalID)
	assert.Equal(t, []domain.HospitalID{"H1"}, res.Record.TransferHistory)
	assert.Equal(t, domain.HospitalID("H2"), res.Record.OriginHospitalID)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, domain.HospitalID("H1"), local.HospitalID, "inputs are not modified")
}

func TestLocation_StaleRemoteIsIgnored(t *testing.T) {
	local := record("H2", t0.Add(time.Hour), "H1")
	remote := record("H1", t0)
	remote.IdentifiedAt = local.IdentifiedAt
	remote.IdentifiedBy = local.IdentifiedBy
	remote.VerifyingHospitalID = local.VerifyingHospitalID
	remote.StatusUpdatedAt = local.StatusUpdatedAt

	res := Location(local, remote)

	assert.False(t, res.LocationChanged)
	assert.Empty(t, res.Changed)
	assert.Equal(t, []domain.HospitalID{"H1"}, res.Record.TransferHistory)
}

func TestLocation_ConcurrentTransfersUnionHistory(t *testing.T) {
	local := record("H3", t0.Add(2*time.Minute), "H1")
	remote := record("H2", t0.Add(time.Minute), "H1")

	res := Location(local, remote)

	assert.Equal(t, domain.HospitalID("H3"), res.Record.HospitalID)
	assert.Equal(t, []domain.HospitalID{"H1", "H2"}, res.Record.TransferHistory)
	assert.Contains(t, res.Changed, "transfer_history")
}

func TestLocation_MergeIsOrderIndependentForCurrentHospital(t *testing.T) {
	a := record("H1", t0)
	b := record("H2", t0.Add(time.Minute))

	ab := Location(a, b).Record
	ba := Location(b, a).Record

	assert.Equal(t, ab.HospitalID, ba.HospitalID)
	assert.ElementsMatch(t, ab.TransferHistory, ba.TransferHistory)
}

func TestLocation_EqualClockDifferentValueIsConflict(t *testing.T) {
	local := record("H1", t0)
	remote := record("H2", t0)
	remote.OriginHospitalID = "H2"

	res := Location(local, remote)

	require.NotEmpty(t, res.Conflicts)
	c := res.Conflicts[0]
	assert.Equal(t, "hospital_id", c.Field)
	assert.Equal(t, "H1", c.LocalValue)
	assert.Equal(t, "H2", c.RemoteValue)
	assert.Equal(t, domain.HospitalID("H1"), res.Record.HospitalID, "local value kept")
}

func TestLocation_VerifierAuthoritativeOnTie(t *testing.T) {
	local := record("H1", t0)
	local.OriginHospitalID = "H3" // relayed copy, not from the verifier
	remote := local.Clone()
	remote.IdentifiedBy = "dr.b"
	remote.OriginHospitalID = remote.VerifyingHospitalID

	res := Location(local, remote)

	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "dr.b", res.Record.IdentifiedBy)
	assert.Contains(t, res.Changed, "identity")
}

func TestLocation_StatusLastWriterWinsAndTerminalSticks(t *testing.T) {
	local := record("H1", t0)
	remote := local.Clone()
	remote.ClinicalStatus = models.StatusCritical
	remote.StatusUpdatedAt = t0.Add(time.Minute)

	res := Location(local, remote)
	assert.Equal(t, models.StatusCritical, res.Record.ClinicalStatus)

	local.ClinicalStatus = models.StatusDeceased
	remote.StatusUpdatedAt = t0.Add(time.Hour)
	res = Location(local, remote)
	assert.Equal(t, models.StatusDeceased, res.Record.ClinicalStatus)
	assert.NotContains(t, res.Changed, "clinical_status")
}

func TestLocation_TerminalStatusConvergesInBothDirections(t *testing.T) {
	deceased := record("H1", t0)
	deceased.ClinicalStatus = models.StatusDeceased
	deceased.StatusUpdatedAt = t0.Add(time.Minute)
	critical := deceased.Clone()
	critical.OriginHospitalID = "H2"
	critical.ClinicalStatus = models.StatusCritical
	critical.StatusUpdatedAt = t0.Add(time.Hour)

	atH1 := Location(deceased, critical)
	atH2 := Location(critical, deceased)

	assert.Equal(t, models.StatusDeceased, atH1.Record.ClinicalStatus)
	assert.Equal(t, models.StatusDeceased, atH2.Record.ClinicalStatus)
	assert.Equal(t, atH1.Record.StatusUpdatedAt, atH2.Record.StatusUpdatedAt)
	assert.NotContains(t, atH1.Changed, "clinical_status")
	assert.Contains(t, atH2.Changed, "clinical_status")
	assert.Empty(t, atH1.Conflicts)
	assert.Empty(t, atH2.Conflicts)
}

func TestLocation_TwoTerminalOutcomesFallBackToClock(t *testing.T) {
	discharged := record("H1", t0)
	discharged.ClinicalStatus = models.StatusDischarged
	discharged.StatusUpdatedAt = t0.Add(time.Minute)
	deceased := discharged.Clone()
	deceased.ClinicalStatus = models.StatusDeceased
	deceased.StatusUpdatedAt = t0.Add(time.Hour)

	assert.Equal(t, models.StatusDeceased, Location(discharged, deceased).Record.ClinicalStatus)
	assert.Equal(t, models.StatusDeceased, Location(deceased, discharged).Record.ClinicalStatus)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "hospital_id,clinical_status", Describe([]Conflict{{Field: "hospital_id"}, {Field: "clinical_status"}}))
}

func TestLocation_DisputedHospitalStaysOutOfHistory(t *testing.T) {
	local := record("H3", t0, "H2")
	remote := record("H1", t0, "H2")
	remote.IdentifiedAt = local.IdentifiedAt
	remote.VerifyingHospitalID = local.VerifyingHospitalID
	remote.IdentifiedBy = local.IdentifiedBy

	res := Location(local, remote)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, []domain.HospitalID{"H2"}, res.Record.TransferHistory)
	assert.Empty(t, res.Changed)
}
