package conversation

import "github.com/dyike/QuantPilot/internal/models"

type CategoryStyle struct {
	Icon  string
	Color string
	Label string
}

var categoryStyles = map[models.Category]CategoryStyle{
	models.CategoryInvestment: {Icon: "💰", Color: "#10B981", Label: "Investment"},
	models.CategoryRisk:       {Icon: "🛡", Color: "#EF4444", Label: "Risk"},
	models.CategoryStrategy:   {Icon: "🎯", Color: "#8B5CF6", Label: "Strategy"},
	models.CategoryGeneral:    {Icon: "💬", Color: "#3B82F6", Label: "General"},
	models.CategoryAnalysis:   {Icon: "📊", Color: "#F59E0B", Label: "Analysis"},
}

// Style returns the icon and color for a category. Unknown categories get
// the general style.
func Style(c models.Category) CategoryStyle {
	if s, ok := categoryStyles[c]; ok {
		return s
	}
	return categoryStyles[models.CategoryGeneral]
}
