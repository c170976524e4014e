package domains

import "github.com/agencydesk/mdconsole/pkg/hierarchy"

const (
	TypeExpenseCategory   = "expense_category"
	TypeExpenseHead       = "expense_head"
	TypeExpenseIndividual = "expense_individual"
)

func ExpenseHierarchy() *hierarchy.Hierarchy {
	return hierarchy.MustNew(Expense, "Expense Categories",
		[]hierarchy.EntitySpec{
			{Type: TypeExpenseCategory, Label: "Expense Category", Endpoint: "/expense-categories", DisplayField: "category_name", Required: []string{"category_name"}},
			{Type: TypeExpenseHead, Label: "Expense Head", Endpoint: "/expense-heads", DisplayField: "head_name", Required: []string{"head_name", "expense_cate_id"}},
			{Type: TypeExpenseIndividual, Label: "Expense Individual", Endpoint: "/expense-individuals", DisplayField: "individual_name", Required: []string{"individual_name", "expense_head_id"}},
		},
		[]hierarchy.Relation{
			{Child: TypeExpenseHead, ForeignKey: "expense_cate_id", Parent: TypeExpenseCategory},
			{Child: TypeExpenseIndividual, ForeignKey: "expense_head_id", Parent: TypeExpenseHead},
		},
	)
}
