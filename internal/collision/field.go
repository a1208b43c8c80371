// Package collision models a single traffic-collision record as it is edited,
// validated, and normalized for the fatality prediction service.
package collision

// Field names one attribute of a collision record. The string value is the
// key used on the wire.
type Field string

// Fields accepted by the prediction service.
const (
	FieldDate           Field = "DATE"
	FieldTime           Field = "TIME"
	FieldRoadClass      Field = "ROAD_CLASS"
	FieldDistrict       Field = "DISTRICT"
	FieldLatitude       Field = "LATITUDE"
	FieldLongitude      Field = "LONGITUDE"
	FieldAccLoc         Field = "ACCLOC"
	FieldTraffCtl       Field = "TRAFFCTL"
	FieldVisibility     Field = "VISIBILITY"
	FieldLight          Field = "LIGHT"
	FieldRdSfCond       Field = "RDSFCOND"
	FieldImpactType     Field = "IMPACTYPE"
	FieldInvType        Field = "INVTYPE"
	FieldInvAge         Field = "INVAGE"
	FieldPedCond        Field = "PEDCOND"
	FieldCycCond        Field = "CYCCOND"
	FieldPedestrian     Field = "PEDESTRIAN"
	FieldCyclist        Field = "CYCLIST"
	FieldAutomobile     Field = "AUTOMOBILE"
	FieldMotorcycle     Field = "MOTORCYCLE"
	FieldTruck          Field = "TRUCK"
	FieldTransitVehicle Field = "TRSN_CITY_VEH"
	FieldEmergVehicle   Field = "EMERG_VEH"
	FieldPassenger      Field = "PASSENGER"
	FieldSpeeding       Field = "SPEEDING"
	FieldAggressive     Field = "AG_DRIV"
	FieldRedLight       Field = "REDLIGHT"
	FieldAlcohol        Field = "ALCOHOL"
	FieldDisability     Field = "DISABILITY"
	FieldNeighbourhood  Field = "NEIGHBOURHOOD_158"
)

// Flag tokens. Flags are never stored as native booleans.
const (
	FlagYes = "YES"
	FlagNo  = "NO"
)

// Kind is the semantic type of a field.
type Kind string

const (
	KindText       Kind = "TEXT"
	KindCategory   Kind = "CATEGORY"
	KindFlag       Kind = "FLAG"
	KindCoordinate Kind = "COORDINATE"
	KindDate       Kind = "DATE"
	KindTime       Kind = "TIME"
)

// Spec describes one field of the collision form.
type Spec struct {
	Field   Field    `json:"field"`
	Kind    Kind     `json:"kind"`
	Label   string   `json:"label"`
	Default string   `json:"default"`
	Options []string `json:"options,omitempty"`
}

// fieldSpecs is the static field model in form order. Category options are
// attached from the embedded catalogue by Fields.
var fieldSpecs = []Spec{
	{Field: FieldDate, Kind: KindDate, Label: "Date (YYYY-MM-DD)"},
	{Field: FieldTime, Kind: KindTime, Label: "Time (HHMM)"},
	{Field: FieldLatitude, Kind: KindCoordinate, Label: "Latitude"},
	{Field: FieldLongitude, Kind: KindCoordinate, Label: "Longitude"},
	{Field: FieldDistrict, Kind: KindCategory, Label: "District"},
	{Field: FieldNeighbourhood, Kind: KindCategory, Label: "Neighbourhood"},
	{Field: FieldRoadClass, Kind: KindCategory, Label: "Road class"},
	{Field: FieldAccLoc, Kind: KindCategory, Label: "Accident location"},
	{Field: FieldTraffCtl, Kind: KindCategory, Label: "Traffic control"},
	{Field: FieldVisibility, Kind: KindCategory, Label: "Visibility"},
	{Field: FieldLight, Kind: KindCategory, Label: "Light"},
	{Field: FieldRdSfCond, Kind: KindCategory, Label: "Road surface condition"},
	{Field: FieldImpactType, Kind: KindCategory, Label: "Impact type"},
	{Field: FieldInvType, Kind: KindCategory, Label: "Involvement type"},
	{Field: FieldInvAge, Kind: KindCategory, Label: "Involved age group"},
	{Field: FieldPedCond, Kind: KindCategory, Label: "Pedestrian condition"},
	{Field: FieldCycCond, Kind: KindCategory, Label: "Cyclist condition"},
	{Field: FieldPedestrian, Kind: KindFlag, Label: "Pedestrian involved", Default: FlagNo},
	{Field: FieldCyclist, Kind: KindFlag, Label: "Cyclist involved", Default: FlagNo},
	{Field: FieldAutomobile, Kind: KindFlag, Label: "Automobile involved", Default: FlagNo},
	{Field: FieldMotorcycle, Kind: KindFlag, Label: "Motorcycle involved", Default: FlagNo},
	{Field: FieldTruck, Kind: KindFlag, Label: "Truck involved", Default: FlagNo},
	{Field: FieldTransitVehicle, Kind: KindFlag, Label: "Transit or city vehicle involved", Default: FlagNo},
	{Field: FieldEmergVehicle, Kind: KindFlag, Label: "Emergency vehicle involved", Default: FlagNo},
	{Field: FieldPassenger, Kind: KindFlag, Label: "Passenger involved", Default: FlagNo},
	{Field: FieldSpeeding, Kind: KindFlag, Label: "Speeding", Default: FlagNo},
	{Field: FieldAggressive, Kind: KindFlag, Label: "Aggressive or distracted driving", Default: FlagNo},
	{Field: FieldRedLight, Kind: KindFlag, Label: "Ran red light", Default: FlagNo},
	{Field: FieldAlcohol, Kind: KindFlag, Label: "Alcohol involved", Default: FlagNo},
	{Field: FieldDisability, Kind: KindFlag, Label: "Medical or physical disability", Default: FlagNo},
}

var specIndex = func() map[Field]Spec {
	idx := make(map[Field]Spec, len(fieldSpecs))
	for _, s := range fieldSpecs {
		idx[s.Field] = s
	}
	return idx
}()

// Fields returns the field model in form order, with category options filled
// in from the catalogue. The returned slice is a fresh copy.
func Fields() []Spec {
	catalogue := Catalogue()
	out := make([]Spec, len(fieldSpecs))
	for i, s := range fieldSpecs {
		if s.Kind == KindCategory {
			s.Options = catalogue.OptionsFor(s.Field)
		}
		out[i] = s
	}
	return out
}

// Lookup returns the spec of a known field.
func Lookup(f Field) (Spec, bool) {
	s, ok := specIndex[f]
	return s, ok
}

// IsCoordinate reports whether f holds a latitude or longitude.
func IsCoordinate(f Field) bool {
	return f == FieldLatitude || f == FieldLongitude
}
