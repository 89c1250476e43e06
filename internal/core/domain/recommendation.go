package domain

type RecommendationCategory string

const (
	CategoryMedical     RecommendationCategory = "Medical"
	CategoryTests       RecommendationCategory = "Tests"
	CategoryLifestyle   RecommendationCategory = "Lifestyle"
	CategoryMedications RecommendationCategory = "Medications"
	CategoryWarnings    RecommendationCategory = "Warnings"
)

// RecommendationCategories lists categories in output order.
func RecommendationCategories() []RecommendationCategory {
	return []RecommendationCategory{
		CategoryMedical,
		CategoryTests,
		CategoryLifestyle,
		CategoryMedications,
		CategoryWarnings,
	}
}

type RecommendationGroup struct {
	Category RecommendationCategory `json:"category"`
	Items    []string               `json:"items"`
}

type RecommendationSet struct {
	Categories []RecommendationGroup `json:"recommendations"`
	ModelUsed  string                `json:"model_used,omitempty"`
	Error      string                `json:"error,omitempty"`
}
