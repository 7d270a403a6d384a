package match

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hoaworks/fundledger/internal/common"
	"github.com/hoaworks/fundledger/internal/model"
)

// Fixed confidence ceilings per strategy.
const (
	confidenceExact     = 1.00
	confidenceReference = 0.95
	confidenceFuzzy     = 0.90
	mlThreshold         = 0.85
)

// fuzzyAmountTolerance is the strict upper bound on |amount delta| for a
// fuzzy match, and fuzzyDateTolerance the inclusive bound on date distance.
var fuzzyAmountTolerance = decimal.NewFromInt(1)

const fuzzyDateTolerance = 3

// proposal is one strategy's candidate pairing before persistence.
type proposal struct {
	entry      *model.JournalEntry
	strategy   model.RuleType
	ruleID     string
	confidence float64
}

// days converts a calendar date to a day ordinal for distance arithmetic.
func days(t time.Time) int64 {
	return t.Unix() / 86400
}

// absDays returns |a-b| in whole days.
func absDays(a, b int64) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	return int(d)
}

// bankAmount returns the magnitude a ledger candidate must carry to
// reconcile the signed bank amount.
func bankAmount(txn *model.BankTransaction) decimal.Decimal {
	return txn.Amount.Abs()
}

// sortCandidates orders candidates deterministically: smaller date distance
// first, then lexicographically smaller id, so repeated runs propose the
// same thing.
func sortCandidates(candidates []*model.JournalEntry, txnDay int64) {
	sort.Slice(candidates, func(i, j int) bool {
		di := absDays(days(candidates[i].EntryDate), txnDay)
		dj := absDays(days(candidates[j].EntryDate), txnDay)
		if di != dj {
			return di < dj
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// matchExact finds candidates with equal amount and equal date. Several
// equal candidates are all surfaced, unresolved, for human review rather
// than auto-picking one.
func matchExact(txn *model.BankTransaction, candidates []model.JournalEntry) []proposal {
	amount := bankAmount(txn)
	date := txn.TransactionDate.Format("2006-01-02")

	var hits []*model.JournalEntry
	for i := range candidates {
		entry := &candidates[i]
		if entry.TotalDebits.Equal(amount) && entry.EntryDate.Format("2006-01-02") == date {
			hits = append(hits, entry)
		}
	}
	sortCandidates(hits, days(txn.TransactionDate))

	proposals := make([]proposal, 0, len(hits))
	for _, hit := range hits {
		proposals = append(proposals, proposal{
			entry:      hit,
			strategy:   model.RuleExact,
			confidence: confidenceExact,
		})
	}
	return proposals
}

// matchFuzzy finds the unique candidate within $1.00 and 3 days. If a second
// candidate ties at the same date distance, the match is suppressed rather
// than guessed.
func matchFuzzy(txn *model.BankTransaction, candidates []model.JournalEntry) []proposal {
	amount := bankAmount(txn)
	txnDay := days(txn.TransactionDate)

	var hits []*model.JournalEntry
	for i := range candidates {
		entry := &candidates[i]
		delta := entry.TotalDebits.Sub(amount).Abs()
		if delta.GreaterThanOrEqual(fuzzyAmountTolerance) {
			continue
		}
		if absDays(days(entry.EntryDate), txnDay) > fuzzyDateTolerance {
			continue
		}
		hits = append(hits, entry)
	}
	if len(hits) == 0 {
		return nil
	}

	sortCandidates(hits, txnDay)
	if len(hits) > 1 {
		best := absDays(days(hits[0].EntryDate), txnDay)
		next := absDays(days(hits[1].EntryDate), txnDay)
		if best == next {
			return nil
		}
	}

	return []proposal{{
		entry:      hits[0],
		strategy:   model.RuleFuzzy,
		confidence: confidenceFuzzy,
	}}
}

// Structured token extractors: check numbers, invoice numbers, and external
// payment references embedded in bank descriptions.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:CHECK|CHK)\s*#?\s*(\d{2,})\b`),
	regexp.MustCompile(`(?i)\bINV(?:OICE)?\s*[-#:]?\s*([A-Za-z0-9-]{3,})\b`),
	regexp.MustCompile(`(?i)\bREF(?:ERENCE)?\s*[-#:]?\s*([A-Za-z0-9-]{3,})\b`),
}

// extractReferenceTokens pulls structured tokens out of a description.
func extractReferenceTokens(description string) []string {
	var tokens []string
	for _, pattern := range referencePatterns {
		for _, groups := range pattern.FindAllStringSubmatch(description, -1) {
			tokens = append(tokens, strings.ToUpper(groups[1]))
		}
	}
	return tokens
}

// matchReference pairs a transaction whose description carries a structured
// token with the pending candidate holding that reference.
func matchReference(txn *model.BankTransaction, candidates []model.JournalEntry) []proposal {
	tokens := extractReferenceTokens(txn.Description)
	if len(tokens) == 0 {
		return nil
	}

	var hits []*model.JournalEntry
	for i := range candidates {
		entry := &candidates[i]
		ref := strings.ToUpper(entry.Reference)
		if ref == "" {
			continue
		}
		for _, token := range tokens {
			if ref == token || strings.Contains(ref, token) {
				hits = append(hits, entry)
				break
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sortCandidates(hits, days(txn.TransactionDate))
	return []proposal{{
		entry:      hits[0],
		strategy:   model.RuleReference,
		confidence: confidenceReference,
	}}
}

// matchPattern applies learned description fingerprints. The matching rule's
// own confidence score is the proposal's confidence; the candidate is the
// closest amount-compatible entry.
func matchPattern(txn *model.BankTransaction, candidates []model.JournalEntry, rules []model.MatchRule) []proposal {
	var best *model.MatchRule
	for i := range rules {
		rule := &rules[i]
		if rule.Type != model.RulePattern || !rule.Active || rule.Pattern == "" {
			continue
		}
		ok, err := common.MatchRegex(rule.Pattern, txn.Description)
		if err != nil || !ok {
			continue
		}
		if best == nil || rule.ConfidenceScore > best.ConfidenceScore {
			best = rule
		}
	}
	if best == nil {
		return nil
	}

	amount := bankAmount(txn)
	var hits []*model.JournalEntry
	for i := range candidates {
		entry := &candidates[i]
		if entry.TotalDebits.Sub(amount).Abs().LessThan(fuzzyAmountTolerance) {
			hits = append(hits, entry)
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sortCandidates(hits, days(txn.TransactionDate))
	return []proposal{{
		entry:      hits[0],
		strategy:   model.RulePattern,
		ruleID:     best.ID,
		confidence: best.ConfidenceScore,
	}}
}

// Fingerprint derives a reusable description pattern from an accepted match:
// digit runs become wildcards so "ACH PMT 10234" and "ACH PMT 10571" share a
// rule.
func Fingerprint(description string) string {
	normalized := strings.Join(strings.Fields(strings.ToUpper(description)), " ")
	if normalized == "" {
		return ""
	}
	escaped := regexp.QuoteMeta(normalized)
	collapsed := regexp.MustCompile(`\d+`).ReplaceAllString(escaped, `\d+`)
	return `(?i)^` + collapsed + `$`
}
