package rate

import "fmt"

// Unlimited is the sentinel for dimensions without a quota.
const Unlimited = -1

// TierLimits are the business quotas for one subscription tier.
type TierLimits struct {
	MonthlyIssueLimit    int `yaml:"monthly_issue_limit"`
	ConcurrentAgentLimit int `yaml:"concurrent_agent_limit"`
	RepositoryLimit      int `yaml:"repository_limit"`
}

// TierTable maps tier names to their quotas.
type TierTable map[string]TierLimits

// DefaultTierTable returns the built-in free/pro/enterprise quotas.
func DefaultTierTable() TierTable {
	return TierTable{
		"free":       {MonthlyIssueLimit: 100, ConcurrentAgentLimit: 1, RepositoryLimit: 3},
		"pro":        {MonthlyIssueLimit: Unlimited, ConcurrentAgentLimit: 5, RepositoryLimit: Unlimited},
		"enterprise": {MonthlyIssueLimit: Unlimited, ConcurrentAgentLimit: Unlimited, RepositoryLimit: Unlimited},
	}
}

// TierResult is the outcome of a quota check.
type TierResult struct {
	Allowed bool
	Limit   int
	Used    int
	Reason  string
}

// CheckMonthlyIssues compares current monthly usage against the tier's
// issue quota. Usage is supplied by the caller; this is a pure function.
func (t TierTable) CheckMonthlyIssues(tier string, used int) TierResult {
	return t.check(tier, used, func(l TierLimits) int { return l.MonthlyIssueLimit }, "monthly issue quota exhausted")
}

// CheckConcurrentAgents compares the number of running agents against the
// tier's concurrency quota.
func (t TierTable) CheckConcurrentAgents(tier string, used int) TierResult {
	return t.check(tier, used, func(l TierLimits) int { return l.ConcurrentAgentLimit }, "concurrent agent quota exhausted")
}

// CheckRepositories compares the number of connected repositories against
// the tier's repository quota.
func (t TierTable) CheckRepositories(tier string, used int) TierResult {
	return t.check(tier, used, func(l TierLimits) int { return l.RepositoryLimit }, "repository quota exhausted")
}

func (t TierTable) check(tier string, used int, dim func(TierLimits) int, reason string) TierResult {
	limits, ok := t[tier]
	if !ok {
		// Unknown tiers get free-tier quotas rather than a free pass.
		limits = t["free"]
		reason = fmt.Sprintf("unknown tier %q treated as free: %s", tier, reason)
	}
	limit := dim(limits)
	if limit == Unlimited {
		return TierResult{Allowed: true, Limit: Unlimited, Used: used}
	}
	if used < limit {
		return TierResult{Allowed: true, Limit: limit, Used: used}
	}
	return TierResult{Allowed: false, Limit: limit, Used: used, Reason: reason}
}
