package tools

import "github.com/ezdanlabs/sara/internal/agent"

// Catalog returns the tool definitions advertised to the agent session.
func Catalog() []agent.Tool {
	return []agent.Tool{
		{
			Type: "function",
			Name: "search_properties",
			Description: "Search for real estate properties based on various criteria like location, " +
				"property type, price range, and number of bedrooms. Use this when the customer asks " +
				"about available properties, apartments, villas, commercial spaces, or any real estate listings.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type": "string",
						"description": "Free text search query. Can include location names, property features, " +
							"or any keywords. Examples: 'Al Wakra apartment', 'commercial space', '3 bedroom villa', 'family home'",
					},
					"property_type": map[string]any{
						"type":        "string",
						"enum":        []string{"Apartment", "Villa", "Commercial", ""},
						"description": "Type of property to filter by. Leave empty to include all types.",
					},
					"location": map[string]any{
						"type":        "string",
						"description": "Location/area to filter by. Examples: 'Al Wakra', 'Ezdan Oasis', 'Doha'",
					},
					"min_price": map[string]any{
						"type":        "integer",
						"description": "Minimum monthly rent in QAR",
					},
					"max_price": map[string]any{
						"type":        "integer",
						"description": "Maximum monthly rent in QAR",
					},
					"bedrooms": map[string]any{
						"type":        "integer",
						"description": "Number of bedrooms required. Use 0 for studios or commercial properties.",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Type: "function",
			Name: "get_property_details",
			Description: "Get detailed information about a specific property by its reference number. " +
				"Use this when the customer asks for more details about a particular property they're interested in.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reference_number": map[string]any{
						"type":        "string",
						"description": "The property reference number (e.g., 'JG-SHOP-A10', 'EOA2-3BHK-FF-A')",
					},
				},
				"required": []string{"reference_number"},
			},
		},
	}
}
