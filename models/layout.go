package models

// LayoutMode drives the single responsive component set on the client.
type LayoutMode string

const (
	LayoutPC     LayoutMode = "pc"
	LayoutTablet LayoutMode = "tablet"
	LayoutMobile LayoutMode = "mobile"
)

func (m LayoutMode) Valid() bool {
	switch m {
	case LayoutPC, LayoutTablet, LayoutMobile:
		return true
	}
	return false
}
