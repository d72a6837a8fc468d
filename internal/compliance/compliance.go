package compliance

import "slatrack/internal/domain"

// Verdict pairs an indicator-bearing SLA node with its period measurement and
// the resulting compliance outcome.
type Verdict struct {
	SLA         domain.ServiceLevelAgreement
	Measurement domain.Measurement
	IsCompliant bool
}

// Evaluate walks the contract's SLA nodes in their given (creation) order and
// produces one verdict per node that binds an SLI with a measurement recorded
// for the period. Nodes without a bound SLI are organizational and emit
// nothing; nodes whose SLI has no measurement are skipped silently.
func Evaluate(slas []domain.ServiceLevelAgreement, measurements []domain.Measurement) []Verdict {
	bySLI := make(map[string]domain.Measurement, len(measurements))
	for _, m := range measurements {
		bySLI[m.SLIID] = m
	}
	var verdicts []Verdict
	for _, sla := range slas {
		if sla.SLIID == nil {
			continue
		}
		m, ok := bySLI[*sla.SLIID]
		if !ok {
			continue
		}
		verdicts = append(verdicts, Verdict{
			SLA:         sla,
			Measurement: m,
			IsCompliant: Compliant(sla, m.CalculatedValue),
		})
	}
	return verdicts
}

// Compliant applies the node's threshold rule to a calculated value. A node
// with a malformed threshold (missing type or value, or a type outside
// MIN/MAX) is non-compliant; the engine rejects such nodes at write time, so
// this default only covers data written around it.
func Compliant(sla domain.ServiceLevelAgreement, calculated float64) bool {
	if sla.ThresholdType == nil || sla.ThresholdValue == nil {
		return false
	}
	switch *sla.ThresholdType {
	case domain.ThresholdMin:
		return calculated >= *sla.ThresholdValue
	case domain.ThresholdMax:
		return calculated <= *sla.ThresholdValue
	}
	return false
}

// Percentage returns the share of compliant items, 0..100. The second return
// is false when there are no items: "no data" is distinct from 0% compliance.
func Percentage(items []domain.ComplianceReportItem) (float64, bool) {
	if len(items) == 0 {
		return 0, false
	}
	compliant := 0
	for _, item := range items {
		if item.IsCompliant {
			compliant++
		}
	}
	return float64(compliant) / float64(len(items)) * 100, true
}
