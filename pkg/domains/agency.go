package domains

import "github.com/agencydesk/mdconsole/pkg/hierarchy"

const (
	TypeAgency       = "agency"
	TypeAgencyScheme = "agency_scheme"
)

// AgencyHierarchy is Agency -> Scheme. Schemes are ordered per agency by seq_no.
func AgencyHierarchy() *hierarchy.Hierarchy {
	return hierarchy.MustNew(Agency, "Agency & Schemes",
		[]hierarchy.EntitySpec{
			{Type: TypeAgency, Label: "Agency", Endpoint: "/agencies", DisplayField: "agency_name", Required: []string{"agency_name"}},
			{Type: TypeAgencyScheme, Label: "Scheme", Endpoint: "/schemes", DisplayField: "scheme_name", OrderField: "seq_no", Required: []string{"scheme_name", "agency_id"}},
		},
		[]hierarchy.Relation{
			{Child: TypeAgencyScheme, ForeignKey: "agency_id", Parent: TypeAgency},
		},
	)
}
