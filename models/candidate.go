package models

// Candidate представляет ресторан, участвующий в текущей сессии.
type Candidate struct {
	ID               int      `json:"id"`
	Ref              string   `json:"rid"`
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Lon              float64  `json:"x"`
	Lat              float64  `json:"y"`
	Address          string   `json:"address,omitempty"`
	RoadAddress      string   `json:"road_address,omitempty"`
	RecommendedPrice string   `json:"recommended_price,omitempty"`
	Images           []string `json:"images"`
	Menus            string   `json:"menus,omitempty"`
	BizHour          string   `json:"biz_hour,omitempty"`

	// Survived is the only field that changes during a session.
	Survived bool `json:"survived"`
}

// Category groups candidates by their category name.
type Category struct {
	Name     string `json:"name"`
	Survived bool   `json:"survived"`
}

// Suggestion is one search autocomplete entry.
type Suggestion struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Category string `json:"category"`
}

// CategoriesOf derives the category list in first-seen order. A category is
// survived iff at least one of its candidates is.
func CategoriesOf(candidates []Candidate) []Category {
	index := make(map[string]int)
	categories := make([]Category, 0)
	for _, c := range candidates {
		i, ok := index[c.Category]
		if !ok {
			index[c.Category] = len(categories)
			categories = append(categories, Category{Name: c.Category, Survived: c.Survived})
			continue
		}
		if c.Survived {
			categories[i].Survived = true
		}
	}
	return categories
}
