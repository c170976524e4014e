package domains

import "github.com/agencydesk/mdconsole/pkg/hierarchy"

const (
	TypeCountry  = "country"
	TypeState    = "state"
	TypeDistrict = "district"
	TypeCity     = "city"
	TypeArea     = "area"
)

// GeographyHierarchy is Country -> State -> District -> City -> Area.
func GeographyHierarchy() *hierarchy.Hierarchy {
	return hierarchy.MustNew(Geography, "Geography",
		[]hierarchy.EntitySpec{
			{Type: TypeCountry, Label: "Country", Endpoint: "/countries", DisplayField: "country_name", Required: []string{"country_name"}},
			{Type: TypeState, Label: "State", Endpoint: "/states", DisplayField: "state_name", Required: []string{"state_name", "country_id"}},
			{Type: TypeDistrict, Label: "District", Endpoint: "/districts", DisplayField: "district_name", Required: []string{"district_name", "state_id"}},
			{Type: TypeCity, Label: "City", Endpoint: "/cities", DisplayField: "city_name", Required: []string{"city_name", "district_id"}},
			{Type: TypeArea, Label: "Area", Endpoint: "/areas", DisplayField: "area_name", Required: []string{"area_name", "city_id"}},
		},
		[]hierarchy.Relation{
			{Child: TypeState, ForeignKey: "country_id", Parent: TypeCountry},
			{Child: TypeDistrict, ForeignKey: "state_id", Parent: TypeState},
			{Child: TypeCity, ForeignKey: "district_id", Parent: TypeDistrict},
			{Child: TypeArea, ForeignKey: "city_id", Parent: TypeCity},
		},
	)
}
