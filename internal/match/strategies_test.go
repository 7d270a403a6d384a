package match

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoaworks/fundledger/internal/model"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func candidate(id, amount string, date time.Time, reference string) model.JournalEntry {
	amt := decimal.RequireFromString(amount)
	return model.JournalEntry{
		ID:           id,
		TenantID:     "hoa-sunset-ridge",
		EntryDate:    date,
		Reference:    reference,
		Status:       model.EntryDraft,
		TotalDebits:  amt,
		TotalCredits: amt,
	}
}

func bankTxn(amount string, date time.Time, description string) *model.BankTransaction {
	return &model.BankTransaction{
		ID:              "txn-1",
		TenantID:        "hoa-sunset-ridge",
		BankAccountID:   "checking",
		TransactionDate: date,
		Amount:          decimal.RequireFromString(amount),
		Description:     description,
		Status:          model.ReconUnmatched,
	}
}

func TestMatchExact(t *testing.T) {
	candidates := []model.JournalEntry{
		candidate("entry-a", "500.00", day(15), ""),
		candidate("entry-b", "500.00", day(14), ""),
		candidate("entry-c", "125.50", day(15), ""),
	}

	// Deposits come in signed negative for withdrawals; the magnitude matches.
	proposals := matchExact(bankTxn("-500.00", day(15), "ACH WITHDRAWAL"), candidates)
	require.Len(t, proposals, 1)
	assert.Equal(t, "entry-a", proposals[0].entry.ID)
	assert.Equal(t, model.RuleExact, proposals[0].strategy)
	assert.Equal(t, 1.00, proposals[0].confidence)

	assert.Empty(t, matchExact(bankTxn("500.01", day(15), ""), candidates))
	assert.Empty(t, matchExact(bankTxn("500.00", day(16), ""), candidates))
}

func TestMatchExact_SurfacesAllEqualCandidates(t *testing.T) {
	candidates := []model.JournalEntry{
		candidate("entry-b", "500.00", day(15), ""),
		candidate("entry-a", "500.00", day(15), ""),
	}

	proposals := matchExact(bankTxn("500.00", day(15), ""), candidates)
	require.Len(t, proposals, 2, "equal candidates all go to review, never auto-picked")
	assert.Equal(t, "entry-a", proposals[0].entry.ID, "ties order by id for determinism")
	assert.Equal(t, "entry-b", proposals[1].entry.ID)
}

func TestMatchFuzzy(t *testing.T) {
	candidates := []model.JournalEntry{
		candidate("entry-a", "500.25", day(17), ""),
		candidate("entry-b", "125.50", day(15), ""),
	}

	proposals := matchFuzzy(bankTxn("500.00", day(15), ""), candidates)
	require.Len(t, proposals, 1)
	assert.Equal(t, "entry-a", proposals[0].entry.ID)
	assert.Equal(t, model.RuleFuzzy, proposals[0].strategy)
	assert.Equal(t, 0.90, proposals[0].confidence)
}

func TestMatchFuzzy_Tolerances(t *testing.T) {
	tests := []struct {
		name      string
		candidate model.JournalEntry
		want      bool
	}{
		{"exact dollar delta is outside the strict bound", candidate("e", "501.00", day(15), ""), false},
		{"just under a dollar", candidate("e", "500.99", day(15), ""), true},
		{"three days away", candidate("e", "500.00", day(18), ""), true},
		{"four days away", candidate("e", "500.00", day(19), ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposals := matchFuzzy(bankTxn("500.00", day(15), ""), []model.JournalEntry{tt.candidate})
			if tt.want {
				assert.Len(t, proposals, 1)
			} else {
				assert.Empty(t, proposals)
			}
		})
	}
}

func TestMatchFuzzy_TieSuppressed(t *testing.T) {
	// Two candidates equidistant from the transaction date: guessing between
	// them would be a coin flip, so neither is proposed.
	candidates := []model.JournalEntry{
		candidate("entry-a", "500.10", day(14), ""),
		candidate("entry-b", "499.90", day(16), ""),
	}
	assert.Empty(t, matchFuzzy(bankTxn("500.00", day(15), ""), candidates))

	// A strictly closer candidate wins even with others in range.
	candidates = append(candidates, candidate("entry-c", "500.00", day(15), ""))
	proposals := matchFuzzy(bankTxn("500.00", day(15), ""), candidates)
	require.Len(t, proposals, 1)
	assert.Equal(t, "entry-c", proposals[0].entry.ID)
}

func TestExtractReferenceTokens(t *testing.T) {
	tests := []struct {
		description string
		want        []string
	}{
		{"CHECK #1042 HOMEOWNER DUES", []string{"1042"}},
		{"Chk 955", []string{"955"}},
		{"landscaping inv-2024-17", []string{"2024-17"}},
		{"WIRE REF: ABC123", []string{"ABC123"}},
		{"POS DEBIT GROCERY", nil},
		{"CHECK #12 AND INVOICE 4471", []string{"12", "4471"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, extractReferenceTokens(tt.description), tt.description)
	}
}

func TestMatchReference(t *testing.T) {
	candidates := []model.JournalEntry{
		candidate("entry-a", "350.00", day(10), "CHECK #1042"),
		candidate("entry-b", "350.00", day(10), "CHECK #1043"),
	}

	proposals := matchReference(bankTxn("-350.00", day(12), "CHECK 1042 LANDSCAPING LLC"), candidates)
	require.Len(t, proposals, 1)
	assert.Equal(t, "entry-a", proposals[0].entry.ID)
	assert.Equal(t, model.RuleReference, proposals[0].strategy)
	assert.Equal(t, 0.95, proposals[0].confidence)

	assert.Empty(t, matchReference(bankTxn("-350.00", day(12), "POS DEBIT"), candidates))
}

func TestMatchPattern(t *testing.T) {
	rules := []model.MatchRule{
		{
			ID: "rule-1", TenantID: "hoa-sunset-ridge", Type: model.RulePattern,
			Pattern: Fingerprint("ACH PMT 10234 WASTE MGMT"), ConfidenceScore: 0.70, Active: true,
		},
		{
			ID: "rule-2", TenantID: "hoa-sunset-ridge", Type: model.RulePattern,
			Pattern: Fingerprint("POOL SERVICE"), ConfidenceScore: 0.80, Active: false,
		},
	}
	candidates := []model.JournalEntry{
		candidate("entry-a", "210.15", day(14), ""),
		candidate("entry-b", "975.00", day(14), ""),
	}

	// Same vendor, different payment number: the learned fingerprint matches.
	proposals := matchPattern(bankTxn("-210.00", day(15), "ACH PMT 10571 WASTE MGMT"), candidates, rules)
	require.Len(t, proposals, 1)
	assert.Equal(t, "entry-a", proposals[0].entry.ID)
	assert.Equal(t, "rule-1", proposals[0].ruleID)
	assert.Equal(t, 0.70, proposals[0].confidence)

	// Inactive rules never fire.
	assert.Empty(t, matchPattern(bankTxn("-210.00", day(15), "POOL SERVICE"), candidates, rules))

	// A matching rule with no amount-compatible candidate proposes nothing.
	assert.Empty(t, matchPattern(bankTxn("-5000.00", day(15), "ACH PMT 10571 WASTE MGMT"), candidates, rules))
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("ACH PMT 10234 Waste Mgmt")
	assert.Equal(t, `(?i)^ACH PMT \d+ WASTE MGMT$`, fp)

	assert.Equal(t, Fingerprint("ach  pmt   10571 waste mgmt"), Fingerprint("ACH PMT 99 WASTE MGMT"),
		"digit runs and whitespace normalize away")
	assert.Empty(t, Fingerprint("   "))
}
