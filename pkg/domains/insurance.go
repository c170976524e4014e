package domains

import "github.com/agencydesk/mdconsole/pkg/hierarchy"

const (
	TypeInsuranceType       = "insurance_type"
	TypeInsuranceSubType    = "insurance_sub_type"
	TypeInsuranceScheme     = "insurance_scheme"
	TypePolicyField         = "policy_field"
	TypeDocumentRequirement = "document_requirement"
)

// InsuranceHierarchy is Insurance Type -> Sub-Type. Schemes, fields and document
// requirements hang off the sub-type and are reported, not cascaded.
func InsuranceHierarchy() *hierarchy.Hierarchy {
	return hierarchy.MustNew(Insurance, "Policy Configuration",
		[]hierarchy.EntitySpec{
			{Type: TypeInsuranceType, Label: "Insurance Type", Endpoint: "/insurance-types", DisplayField: "insurance_type", Required: []string{"insurance_type"}},
			{Type: TypeInsuranceSubType, Label: "Sub-Type", Endpoint: "/insurance-sub-types", DisplayField: "sub_type_name", Required: []string{"sub_type_name", "insurance_type_id"}},
			{Type: TypeInsuranceScheme, Label: "Scheme", Endpoint: "/insurance-schemes", DisplayField: "scheme_name", Required: []string{"scheme_name", "ins_sub_type_id"}},
			{Type: TypePolicyField, Label: "Field", Endpoint: "/policy-fields", DisplayField: "field_label", Required: []string{"field_label", "ins_sub_type_id"}},
			{Type: TypeDocumentRequirement, Label: "Document Requirement", Endpoint: "/document-requirements", DisplayField: "document_name", Required: []string{"document_name", "ins_sub_type_id"}, Removable: true},
		},
		[]hierarchy.Relation{
			{Child: TypeInsuranceSubType, ForeignKey: "insurance_type_id", Parent: TypeInsuranceType},
			{Child: TypeInsuranceScheme, ForeignKey: "ins_sub_type_id", Parent: TypeInsuranceSubType, ReportOnly: true},
			{Child: TypePolicyField, ForeignKey: "ins_sub_type_id", Parent: TypeInsuranceSubType, ReportOnly: true},
			{Child: TypeDocumentRequirement, ForeignKey: "ins_sub_type_id", Parent: TypeInsuranceSubType, ReportOnly: true},
		},
	)
}
