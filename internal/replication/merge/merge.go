// Package merge resolves a location record received from a peer against
// the local copy. Each field group has an owner rule in LocationPolicy; the
// merge walks the table rather than branching per field.
package merge

import (
	"strings"
	"time"

	"reunite/internal/directory/models"
	"reunite/pkg/domain"
	pstrings "reunite/pkg/platform/strings"
)

// Strategy names how a field group picks between local and remote.
type Strategy string

const (
	// LastWriterWins takes the side with the later clock.
	LastWriterWins Strategy = "last_writer_wins"
	// VerifierAuthoritative takes the later verification; on a tie the
	// record sent by its own verifying hospital wins.
	VerifierAuthoritative Strategy = "verifier_authoritative"
	// TerminalFirst takes a terminal value over a non-terminal one whatever
	// the clocks say; otherwise it behaves as LastWriterWins.
	TerminalFirst Strategy = "terminal_first"
	// AppendUnion keeps every element from both sides.
	AppendUnion Strategy = "append_union"
)

// FieldRule binds a field group to a strategy.
type FieldRule struct {
	Field    string
	Strategy Strategy
	clock    func(*models.LocationRecord) time.Time
	value    func(*models.LocationRecord) string
	take     func(dst, src *models.LocationRecord)
}

// LocationPolicy is the field ownership table for patient location records.
var LocationPolicy = []FieldRule{
	{
		Field:    "hospital_id",
		Strategy: LastWriterWins,
		clock:    func(r *models.LocationRecord) time.Time { return r.LocationUpdatedAt },
		value:    func(r *models.LocationRecord) string { return r.HospitalID.String() },
		take: func(dst, src *models.LocationRecord) {
			dst.HospitalID = src.HospitalID
			dst.LocationUpdatedAt = src.LocationUpdatedAt
		},
	},
	{
		Field:    "identity",
		Strategy: VerifierAuthoritative,
		clock:    func(r *models.LocationRecord) time.Time { return r.IdentifiedAt },
		value: func(r *models.LocationRecord) string {
			return r.IdentifiedBy + "@" + r.VerifyingHospitalID.String()
		},
		take: func(dst, src *models.LocationRecord) {
			dst.IdentifiedBy = src.IdentifiedBy
			dst.IdentifiedAt = src.IdentifiedAt
			dst.VerifyingHospitalID = src.VerifyingHospitalID
		},
	},
	{
		Field:    "clinical_status",
		Strategy: TerminalFirst,
		clock:    func(r *models.LocationRecord) time.Time { return r.StatusUpdatedAt },
		value:    func(r *models.LocationRecord) string { return string(r.ClinicalStatus) },
		take: func(dst, src *models.LocationRecord) {
			dst.ClinicalStatus = src.ClinicalStatus
			dst.StatusUpdatedAt = src.StatusUpdatedAt
		},
	},
	{
		Field:    "transfer_history",
		Strategy: AppendUnion,
	},
}

// Conflict is a field both sides wrote at the same instant with different
// values. The local value is kept until an operator resolves it.
type Conflict struct {
	Field        string
	LocalValue   string
	RemoteValue  string
	LocalOrigin  domain.HospitalID
	RemoteOrigin domain.HospitalID
}

// Result is the outcome of merging one remote record.
type Result struct {
	Record          *models.LocationRecord
	Changed         []string
	LocationChanged bool
	Conflicts       []Conflict
}

// Location merges remote into a copy of local. Neither input is modified.
func Location(local, remote *models.LocationRecord) Result {
	merged := local.Clone()
	res := Result{Record: merged}
	locationWinner, locationLoser := local, remote
	locationConflict := false

	for _, rule := range LocationPolicy {
		switch rule.Strategy {
		case LastWriterWins, VerifierAuthoritative, TerminalFirst:
			takeRemote, conflict := decide(rule, local, remote)
			if conflict {
				res.Conflicts = append(res.Conflicts, Conflict{
					Field:        rule.Field,
					LocalValue:   rule.value(local),
					RemoteValue:  rule.value(remote),
					LocalOrigin:  local.OriginHospitalID,
					RemoteOrigin: remote.OriginHospitalID,
				})
				if rule.Field == "hospital_id" {
					locationConflict = true
				}
				continue
			}
			if !takeRemote {
				continue
			}
			before := rule.value(merged)
			rule.take(merged, remote)
			if rule.value(merged) != before || !rule.clock(merged).Equal(rule.clock(local)) {
				res.Changed = append(res.Changed, rule.Field)
			}
			if rule.Field == "hospital_id" {
				locationWinner, locationLoser = remote, local
				res.LocationChanged = merged.HospitalID != local.HospitalID
			}
		case AppendUnion:
			// Runs after hospital_id, so the winner is known. A disputed
			// current hospital is not folded into history.
			history := unionHistory(locationWinner, locationLoser, !locationConflict)
			if !equalHistory(history, merged.TransferHistory) {
				merged.TransferHistory = history
				res.Changed = append(res.Changed, rule.Field)
			}
		}
	}
	if len(res.Changed) > 0 {
		merged.OriginHospitalID = locationWinner.OriginHospitalID
	}
	return res
}

// decide reports whether remote should be taken, or whether the rule is in
// conflict. The answer depends only on the two records, never on which
// side is local, so peers converge whatever order they merge in.
func decide(rule FieldRule, local, remote *models.LocationRecord) (takeRemote, conflict bool) {
	if rule.Strategy == TerminalFirst {
		if lt, rt := local.IsTerminal(), remote.IsTerminal(); lt != rt {
			return rt, false
		}
	}
	lc, rc := rule.clock(local), rule.clock(remote)
	switch {
	case rc.After(lc):
		return true, false
	case rc.Before(lc):
		return false, false
	}
	if rule.value(local) == rule.value(remote) {
		return false, false
	}
	if rule.Strategy == VerifierAuthoritative {
		localOwns := local.OriginHospitalID == local.VerifyingHospitalID
		remoteOwns := remote.OriginHospitalID == remote.VerifyingHospitalID
		if remoteOwns != localOwns {
			return remoteOwns, false
		}
	}
	return false, true
}

// unionHistory treats each record as the path history+current, unions the
// paths keeping the winner's order, and drops the winner's current
// hospital from the end of its own path.
func unionHistory(winner, loser *models.LocationRecord, includeLoserCurrent bool) []domain.HospitalID {
	winnerPath := append(append([]domain.HospitalID{}, winner.TransferHistory...), winner.HospitalID)
	loserPath := append([]domain.HospitalID{}, loser.TransferHistory...)
	if includeLoserCurrent {
		loserPath = append(loserPath, loser.HospitalID)
	}
	union := pstrings.MultisetUnion(winnerPath, loserPath)
	current := len(winnerPath) - 1
	return append(union[:current:current], union[current+1:]...)
}

func equalHistory(a, b []domain.HospitalID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Describe renders conflicts for logs.
func Describe(conflicts []Conflict) string {
	fields := make([]string, len(conflicts))
	for i, c := range conflicts {
		fields[i] = c.Field
	}
	return strings.Join(fields, ",")
}
