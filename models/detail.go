package models

// Detail is the informational payload shown for a single restaurant.
type Detail struct {
	Menus   []Menu   `json:"menus"`
	Reviews []Review `json:"reviews"`
}

type Menu struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	Price         string      `json:"price"`
	IsRecommended bool        `json:"is_recommended"`
	Description   string      `json:"description"`
	MenuIdx       int         `json:"menu_idx"`
	Images        []MenuImage `json:"images"`
}

type MenuImage struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type Review struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	AuthorName string `json:"author_name"`
	// ProfileImage приходит от API в виде base64.
	ProfileImage *string `json:"profile_image,omitempty"`
	Content      string  `json:"content"`
	CreatedAt    string  `json:"created_at"`
}
