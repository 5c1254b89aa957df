package domain

// Category identifies a knowledge content category.
// Categories are a closed set; free-form strings are rejected at every boundary.
type Category string

const (
	CategorySOPs        Category = "sops"
	CategoryPricing     Category = "pricing"
	CategoryInspections Category = "inspections"
	CategoryQuotes      Category = "quotes"
	CategoryServices    Category = "services"
	CategoryGeneral     Category = "general"
	CategoryBrand       Category = "brand"
	CategoryOperations  Category = "operations"
	CategoryWorkflows   Category = "workflows"
	CategoryMarketing   Category = "marketing"
)

// Categories lists every valid category in declaration order.
func Categories() []Category {
	return []Category{
		CategorySOPs,
		CategoryPricing,
		CategoryInspections,
		CategoryQuotes,
		CategoryServices,
		CategoryGeneral,
		CategoryBrand,
		CategoryOperations,
		CategoryWorkflows,
		CategoryMarketing,
	}
}

// IsValidCategory checks if a Category is one of the known values.
func IsValidCategory(c Category) bool {
	switch c {
	case CategorySOPs, CategoryPricing, CategoryInspections, CategoryQuotes,
		CategoryServices, CategoryGeneral, CategoryBrand, CategoryOperations,
		CategoryWorkflows, CategoryMarketing:
		return true
	}
	return false
}
