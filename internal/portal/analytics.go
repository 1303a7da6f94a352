package portal

// Figure is a headline number and its change in percent.
type Figure struct {
	Total  float64
	Change float64
}

// Share is one slice of the category breakdown.
type Share struct {
	Category string
	Percent  int
}

// Analytics is the data behind the dashboard page.
type Analytics struct {
	AverageSales   Figure
	TotalSales     Figure
	TotalInquiries Figure
	TotalInvoices  Figure
	Profit         []int
	Sales          []int
	Categories     []Share
}

// placeholderAnalytics returns fixed figures. Nothing is aggregated from
// orders yet.
func placeholderAnalytics() Analytics {
	return Analytics{
		AverageSales:   Figure{Total: 50897, Change: 8},
		TotalSales:     Figure{Total: 550897, Change: 3.48},
		TotalInquiries: Figure{Total: 750897, Change: 3.48},
		TotalInvoices:  Figure{Total: 897, Change: 3.48},
		Profit:         []int{10, 20, 15, 40, 50, 70, 90},
		Sales:          []int{5, 15, 25, 35, 30, 60, 80},
		Categories: []Share{
			{Category: "Apple", Percent: 40},
			{Category: "Samsung", Percent: 30},
			{Category: "Vivo", Percent: 20},
			{Category: "Oppo", Percent: 10},
		},
	}
}
