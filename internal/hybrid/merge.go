package hybrid

import "foodsafe-backend/internal/analysis"

// Merge combines a local and a remote verdict for the hybrid branch.
// Confidence and risk come from local. Each alert list comes from local when
// local found anything for it, otherwise from remote. The risk level is the
// higher of local's and the level implied by the merged lists, so it only
// departs from local's when an adopted remote list is more severe.
func Merge(local, remote analysis.AnalysisResult) analysis.AnalysisResult {
	local = local.Clone()
	remote = remote.Clone()

	out := analysis.AnalysisResult{
		RiskLevel:        local.RiskLevel,
		AllergenAlerts:   local.AllergenAlerts,
		DrugInteractions: local.DrugInteractions,
		Confidence:       local.Confidence,
	}
	if len(local.AllergenAlerts) == 0 {
		out.AllergenAlerts = remote.AllergenAlerts
	}
	if len(local.DrugInteractions) == 0 {
		out.DrugInteractions = remote.DrugInteractions
	}
	out = out.Normalize(analysis.MethodHybrid)
	out.RiskLevel = analysis.MaxRisk(local.RiskLevel, out.RiskLevel)
	out.Safe = out.RiskLevel == analysis.RiskSafe
	return out
}

// localVerdict returns local as an ML result. Its risk level may be raised by
// its own alerts but never lowered below what local asserted.
func localVerdict(local analysis.AnalysisResult) analysis.AnalysisResult {
	out := local.Clone().Normalize(analysis.MethodML)
	out.RiskLevel = analysis.MaxRisk(local.RiskLevel, out.RiskLevel)
	out.Safe = out.RiskLevel == analysis.RiskSafe
	return out
}
