package trivy

import "github.com/mfaraco/nexscan/internal/types"

// Normalize converts a raw engine report into canonical vulnerability
// records. A nil or empty report yields an empty slice; a result section
// with zero findings contributes zero records. Absent engine fields default
// to the empty string (empty slice for references), never null, and every
// record carries a non-empty target.
func Normalize(rep *Report) []types.VulnerabilityRecord {
	records := []types.VulnerabilityRecord{}
	if rep == nil {
		return records
	}

	for _, res := range rep.Results {
		target := res.Target
		if target == "" {
			target = "unknown"
		}
		for _, v := range res.Vulnerabilities {
			sev, err := types.ParseSeverity(v.Severity)
			if err != nil {
				sev = types.SeverityUnknown
			}
			refs := v.References
			if refs == nil {
				refs = []string{}
			}
			records = append(records, types.VulnerabilityRecord{
				Target:           target,
				VulnerabilityID:  v.VulnerabilityID,
				PkgName:          v.PkgName,
				InstalledVersion: v.InstalledVersion,
				Severity:         sev,
				Title:            v.Title,
				Description:      v.Description,
				FixedVersion:     v.FixedVersion,
				References:       refs,
			})
		}
	}
	return records
}
