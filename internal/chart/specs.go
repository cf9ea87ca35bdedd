package chart

import "spendboard/internal/aggregate"

// Charts shown on the dashboard pages.
var (
	MonthlyExpenses = Spec{
		Name:      "monthly-expenses",
		Title:     "Monthly Expenses",
		XLabel:    "Month-Year",
		YLabel:    "Total Amount",
		TickAngle: -45,
	}
	CategoryMonthly = Spec{
		Name:       "category-monthly",
		Title:      "Category-wise Monthly Spending",
		XLabel:     "Month-Year",
		YLabel:     "Total Amount",
		GroupLabel: "Expense Category",
		Stacked:    true,
		TickAngle:  -45,
	}
	YearlyExpenses = Spec{
		Name:      "yearly-expenses",
		Title:     "Total Yearly Expenses",
		XLabel:    "Year",
		YLabel:    "Total Expenses",
		TickAngle: -45,
	}
	DailyExpenses = Spec{
		Name:      "daily-expenses",
		Title:     "Daily Total Spending",
		XLabel:    "Date",
		YLabel:    "Total Amount",
		TickAngle: -45,
	}
	MonthlyInvestments = Spec{
		Name:       "monthly-investments",
		Title:      "Monthly Investments by Type",
		XLabel:     "Month-Year",
		YLabel:     "Investment Amount",
		GroupLabel: "Type",
		Stacked:    true,
		TickAngle:  -45,
	}
	YearlyInvestments = Spec{
		Name:       "yearly-investments",
		Title:      "Yearly Investments by Type",
		XLabel:     "Year",
		YLabel:     "Investment Amount",
		GroupLabel: "Type",
		Stacked:    true,
	}
)

// Panel pairs a chart with the view it draws.
type Panel struct {
	Spec  Spec
	Table aggregate.Table
}

func ExpensePanels(v aggregate.ExpenseViews) []Panel {
	return []Panel{
		{MonthlyExpenses, v.Monthly},
		{CategoryMonthly, v.CategoryMonthly},
		{YearlyExpenses, v.Yearly},
		{DailyExpenses, v.Daily},
	}
}

func InvestmentPanels(v aggregate.InvestmentViews) []Panel {
	return []Panel{
		{MonthlyInvestments, v.MonthlyByType},
		{YearlyInvestments, v.YearlyByType},
	}
}
