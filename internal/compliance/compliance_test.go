package compliance

import (
	"reflect"
	"testing"

	"slatrack/internal/domain"
)

func strptr(s string) *string { return &s }

func f64ptr(f float64) *float64 { return &f }

func sla(id, contract string) domain.ServiceLevelAgreement {
	return domain.ServiceLevelAgreement{ID: id, ContractID: contract, Name: id}
}

func boundSLA(id, sliID, thresholdType string, value float64) domain.ServiceLevelAgreement {
	s := sla(id, "c-1")
	s.SLIID = strptr(sliID)
	s.ThresholdType = strptr(thresholdType)
	s.ThresholdValue = f64ptr(value)
	return s
}

func measurement(sliID string, calculated float64) domain.Measurement {
	return domain.Measurement{ID: "m-" + sliID, ReportingPeriodID: "p-1", SLIID: sliID, ReportedValue: calculated, CalculatedValue: calculated}
}

func TestThresholdSemantics(t *testing.T) {
	cases := []struct {
		name       string
		sla        domain.ServiceLevelAgreement
		calculated float64
		want       bool
	}{
		{"max equal is compliant", boundSLA("s1", "sli1", domain.ThresholdMax, 24.0), 24.0, true},
		{"max above is not", boundSLA("s1", "sli1", domain.ThresholdMax, 24.0), 24.1, false},
		{"min equal is compliant", boundSLA("s1", "sli1", domain.ThresholdMin, 99.0), 99.0, true},
		{"min below is not", boundSLA("s1", "sli1", domain.ThresholdMin, 99.0), 98.9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compliant(tc.sla, tc.calculated); got != tc.want {
				t.Fatalf("Compliant = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUnknownThresholdTypeNonCompliant(t *testing.T) {
	s := boundSLA("s1", "sli1", "AVG", 10.0)
	if Compliant(s, 5.0) {
		t.Fatal("unknown threshold type must evaluate non-compliant")
	}
	s2 := sla("s2", "c-1")
	s2.SLIID = strptr("sli1")
	if Compliant(s2, 5.0) {
		t.Fatal("missing threshold must evaluate non-compliant")
	}
}

func TestEvaluateSkipsMissingMeasurement(t *testing.T) {
	slas := []domain.ServiceLevelAgreement{
		boundSLA("s1", "sli1", domain.ThresholdMax, 1.0),
		boundSLA("s2", "sli2", domain.ThresholdMax, 24.0),
	}
	verdicts := Evaluate(slas, []domain.Measurement{measurement("sli2", 2.0)})
	if len(verdicts) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(verdicts))
	}
	if verdicts[0].SLA.ID != "s2" {
		t.Fatalf("verdict for %s, want s2", verdicts[0].SLA.ID)
	}
	if !verdicts[0].IsCompliant {
		t.Fatal("2.0 <= 24.0 should be compliant")
	}
}

func TestEvaluateOrganizationalPassThrough(t *testing.T) {
	parent := sla("group", "c-1")
	child := boundSLA("child", "sli1", domain.ThresholdMin, 99.0)
	child.ParentID = strptr("group")
	verdicts := Evaluate([]domain.ServiceLevelAgreement{parent, child}, []domain.Measurement{measurement("sli1", 99.5)})
	if len(verdicts) != 1 {
		t.Fatalf("got %d verdicts, want 1 (group node emits nothing)", len(verdicts))
	}
	if verdicts[0].SLA.ID != "child" {
		t.Fatalf("verdict for %s, want child", verdicts[0].SLA.ID)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	slas := []domain.ServiceLevelAgreement{
		boundSLA("s1", "sli1", domain.ThresholdMax, 1.0),
		boundSLA("s2", "sli2", domain.ThresholdMin, 99.0),
	}
	ms := []domain.Measurement{measurement("sli1", 0.5), measurement("sli2", 98.0)}
	first := Evaluate(slas, ms)
	second := Evaluate(slas, ms)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated evaluation must yield identical verdicts")
	}
	if len(first) != 2 || !first[0].IsCompliant || first[1].IsCompliant {
		t.Fatalf("unexpected verdicts: %+v", first)
	}
}

func TestPercentageSentinel(t *testing.T) {
	if _, ok := Percentage(nil); ok {
		t.Fatal("empty item set must report no data")
	}
	items := []domain.ComplianceReportItem{
		{ID: "i1", IsCompliant: true},
		{ID: "i2", IsCompliant: false},
		{ID: "i3", IsCompliant: true},
		{ID: "i4", IsCompliant: false},
	}
	pct, ok := Percentage(items)
	if !ok || pct != 50.0 {
		t.Fatalf("Percentage = %v,%v, want 50,true", pct, ok)
	}
	pct, ok = Percentage([]domain.ComplianceReportItem{{ID: "i1"}})
	if !ok || pct != 0.0 {
		t.Fatalf("all non-compliant must be 0%%,true, got %v,%v", pct, ok)
	}
}

func TestBuildTree(t *testing.T) {
	root := sla("root", "c-1")
	childA := boundSLA("a", "sli1", domain.ThresholdMax, 1.0)
	childA.ParentID = strptr("root")
	childB := boundSLA("b", "sli2", domain.ThresholdMax, 24.0)
	childB.ParentID = strptr("root")
	grandchild := boundSLA("a1", "sli3", domain.ThresholdMin, 99.0)
	grandchild.ParentID = strptr("a")

	items := []domain.ComplianceReportItem{
		{ID: "i1", ReportID: "r1", SLAID: "a", MeasurementID: "m1", IsCompliant: true},
	}
	nodes := BuildTree([]domain.ServiceLevelAgreement{root, childA, childB, grandchild}, items)
	if len(nodes) != 1 {
		t.Fatalf("got %d roots, want 1", len(nodes))
	}
	tree := nodes[0]
	if tree.SLA.ID != "root" || tree.Item != nil {
		t.Fatalf("root node wrong: %+v", tree)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(tree.Children))
	}
	a := tree.Children[0]
	if a.SLA.ID != "a" || a.Item == nil || !a.Item.IsCompliant {
		t.Fatalf("child a wrong: %+v", a)
	}
	if len(a.Children) != 1 || a.Children[0].SLA.ID != "a1" || a.Children[0].Item != nil {
		t.Fatalf("grandchild wrong: %+v", a.Children)
	}
	if tree.Children[1].Item != nil {
		t.Fatal("child b has no item")
	}
}

func TestBuildTreeGuardsCorruptParents(t *testing.T) {
	// two nodes pointing at each other never terminate without the guard
	a := sla("a", "c-1")
	a.ParentID = strptr("b")
	b := sla("b", "c-1")
	b.ParentID = strptr("a")
	root := sla("root", "c-1")
	nodes := BuildTree([]domain.ServiceLevelAgreement{root, a, b}, nil)
	if len(nodes) != 1 || nodes[0].SLA.ID != "root" {
		t.Fatalf("expected the sole root to survive, got %+v", nodes)
	}
}
