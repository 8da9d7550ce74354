package schema

const (
	NatalityTable = "natality"

	// Years populated in the public natality sample.
	FirstCoveredYear = 1969
	LastCoveredYear  = 2008
)

var natality = Table{
	ID:          NatalityTable,
	Description: "Births in the United States, covering the years 1969 to 2008.",
	Fields: []Field{
		{Name: "source_year", Type: Integer, Description: "Year of the data source. Example: 1975"},
		{Name: "year", Type: Integer, Description: "Four-digit year of birth. Example: 1975"},
		{Name: "month", Type: Integer, Description: "Month of birth, where 1 = January."},
		{Name: "day", Type: Integer, Description: "Day of birth, starting from 1."},
		{Name: "wday", Type: Integer, Description: "Day of the week, where 1 = Sunday and 7 = Saturday."},
		{Name: "state", Type: String, Description: "Postal abbreviation of the state. Not available after 2004."},
		{Name: "is_male", Type: Boolean, Description: "True if the baby is male, false if female."},
		{Name: "child_race", Type: Integer, Description: "Race of the child (1-White, 2-Black, 3-American Indian, 4-Chinese, etc.)."},
		{Name: "weight_pounds", Type: Float, Description: "Weight of the child at birth, in pounds."},
		{Name: "plurality", Type: Integer, Description: "Number of children born of this pregnancy (2=twins, 3=triplets, etc.)."},
		{Name: "apgar_1min", Type: Integer, Description: "Apgar score at 1 minute (0-10), years 1978-2002."},
		{Name: "apgar_5min", Type: Integer, Description: "Apgar score at 5 minutes (0-10), years 1978-2002."},
		{Name: "mother_residence_state", Type: String, Description: "State of residence of the mother."},
		{Name: "mother_race", Type: Integer, Description: "Race of the mother (same codes as child_race)."},
		{Name: "mother_age", Type: Integer, Description: "Age of the mother."},
		{Name: "gestation_weeks", Type: Integer, Description: "Weeks of gestation."},
		{Name: "lmp", Type: String, Description: "Date of the last menstrual period (MMDDYYYY). '99' or '9999' mean unknown."},
		{Name: "mother_married", Type: Boolean, Description: "True if the mother was married."},
		{Name: "mother_birth_state", Type: String, Description: "State where the mother was born."},
		{Name: "cigarette_use", Type: Boolean, Description: "True if the mother smoked (since 2003)."},
		{Name: "cigarettes_per_day", Type: Integer, Description: "Cigarettes per day (since 2003)."},
		{Name: "alcohol_use", Type: Boolean, Description: "True if the mother drank alcohol (since 1989)."},
		{Name: "drinks_per_week", Type: Integer, Description: "Alcoholic drinks per week (since 1989)."},
		{Name: "weight_gain_pounds", Type: Integer, Description: "Weight gained by the mother, in pounds."},
		{Name: "born_alive_alive", Type: Integer, Description: "Previous children born alive who are still living."},
		{Name: "born_alive_dead", Type: Integer, Description: "Previous children born alive who have since died."},
		{Name: "born_dead", Type: Integer, Description: "Children born dead."},
		{Name: "ever_born", Type: Integer, Description: "Total children ever born to the mother."},
		{Name: "father_race", Type: Integer, Description: "Race of the father (same codes as child_race)."},
		{Name: "father_age", Type: Integer, Description: "Age of the father."},
		{Name: "record_weight", Type: Integer, Description: "Record weight for statistical sampling."},
	},
}

// Default returns the catalog of the natality dataset.
func Default() *Catalog {
	c, err := NewCatalog(natality)
	if err != nil {
		panic(err)
	}
	return c
}

// Covered reports whether year falls inside the populated range.
func Covered(year int) bool {
	return year >= FirstCoveredYear && year <= LastCoveredYear
}
