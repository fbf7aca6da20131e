package plans

import "strings"

// Canonical plan names and their monthly try-on limits.
const (
	FreePlanName         = "Free Plan"
	ProfessionalPlanName = "Professional Plan"
	EnterprisePlanName   = "Enterprise Plan"

	FreeLimit         = 2
	ProfessionalLimit = 500
	EnterpriseLimit   = 10000
)

// Plan is a resolved catalog entry.
type Plan struct {
	Name  string
	Limit int
}

// keyword priority is fixed: the longest known keyword wins, checked
// Enterprise before Professional so decorated enterprise names never fall
// through to the cheaper tier. Matching is case-sensitive on purpose; the
// provider controls the casing of its own plan names.
type entry struct {
	keyword string
	plan    Plan
}

// Catalog resolves provider-supplied plan names to quota limits.
type Catalog struct {
	entries  []entry
	fallback Plan
	free     Plan
}

// NewCatalog builds the default catalog.
func NewCatalog() *Catalog {
	free := Plan{Name: FreePlanName, Limit: FreeLimit}
	professional := Plan{Name: ProfessionalPlanName, Limit: ProfessionalLimit}
	enterprise := Plan{Name: EnterprisePlanName, Limit: EnterpriseLimit}
	return &Catalog{
		entries: []entry{
			{keyword: "Enterprise", plan: enterprise},
			{keyword: "Professional", plan: professional},
			{keyword: "Free", plan: free},
		},
		// An unrecognized paid plan gets the lowest paid tier's limit, never
		// the free limit: a paying tenant on a plan we have not cataloged yet
		// must not be starved down to the free quota.
		fallback: professional,
		free:     free,
	}
}

// FreePlan returns the free tier entry.
func (c *Catalog) FreePlan() Plan {
	return c.free
}

// Resolve maps an external plan name onto a catalog entry. Known keywords
// canonicalize the name ("Enterprise Plan (20% Off)" resolves to the
// enterprise entry); unknown non-empty names are kept verbatim with the
// fallback limit so new provider plans keep working before they are
// cataloged.
func (c *Catalog) Resolve(externalName string) Plan {
	trimmed := strings.TrimSpace(externalName)
	if trimmed == "" {
		return c.free
	}
	for _, e := range c.entries {
		if strings.Contains(trimmed, e.keyword) {
			return e.plan
		}
	}
	return Plan{Name: trimmed, Limit: c.fallback.Limit}
}

// LimitFor returns the quota for a plan name.
func (c *Catalog) LimitFor(planName string) int {
	return c.Resolve(planName).Limit
}
