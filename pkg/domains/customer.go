package domains

import "github.com/agencydesk/mdconsole/pkg/hierarchy"

const (
	TypeCustomerCategory    = "customer_category"
	TypeCustomerSubCategory = "customer_sub_category"
)

func CustomerHierarchy() *hierarchy.Hierarchy {
	return hierarchy.MustNew(Customer, "Customer Segments",
		[]hierarchy.EntitySpec{
			{Type: TypeCustomerCategory, Label: "Customer Category", Endpoint: "/customer-categories", DisplayField: "category_name", Required: []string{"category_name"}},
			{Type: TypeCustomerSubCategory, Label: "Customer Sub-Category", Endpoint: "/customer-sub-categories", DisplayField: "sub_category_name", Required: []string{"sub_category_name", "cust_category_id"}},
		},
		[]hierarchy.Relation{
			{Child: TypeCustomerSubCategory, ForeignKey: "cust_category_id", Parent: TypeCustomerCategory},
		},
	)
}
