package event

type Category string

const (
	CategoryConcert    Category = "CONCERT"
	CategoryTheatre    Category = "THEATRE"
	CategoryConference Category = "CONFERENCE"
	CategorySport      Category = "SPORT"
	CategoryOther      Category = "OTHER"
)

// Categories lists every valid category. Consumers that map categories to
// labels or colors are tested against this slice so a new category cannot be
// added without updating them.
var Categories = []Category{
	CategoryConcert,
	CategoryTheatre,
	CategoryConference,
	CategorySport,
	CategoryOther,
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryConcert, CategoryTheatre, CategoryConference, CategorySport, CategoryOther:
		return true
	default:
		return false
	}
}

// display mappings, one entry per category
var categoryLabels = map[Category]string{
	CategoryConcert:    "Concert",
	CategoryTheatre:    "Theatre",
	CategoryConference: "Conference",
	CategorySport:      "Sport",
	CategoryOther:      "Other",
}

var categoryColors = map[Category]string{
	CategoryConcert:    "#7c4dff",
	CategoryTheatre:    "#ff7043",
	CategoryConference: "#29b6f6",
	CategorySport:      "#66bb6a",
	CategoryOther:      "#9e9e9e",
}

func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) Color() string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return categoryColors[CategoryOther]
}
