package collision

import (
	"strings"
	"unicode"
)

// PredictionRequest is one record in the exact shape the prediction service
// accepts. It carries every contract field and nothing else.
type PredictionRequest struct {
	Date           string  `json:"DATE"`
	Time           string  `json:"TIME"`
	RoadClass      string  `json:"ROAD_CLASS"`
	District       string  `json:"DISTRICT"`
	Latitude       float64 `json:"LATITUDE"`
	Longitude      float64 `json:"LONGITUDE"`
	AccLoc         string  `json:"ACCLOC"`
	TraffCtl       string  `json:"TRAFFCTL"`
	Visibility     string  `json:"VISIBILITY"`
	Light          string  `json:"LIGHT"`
	RdSfCond       string  `json:"RDSFCOND"`
	ImpactType     string  `json:"IMPACTYPE"`
	InvType        string  `json:"INVTYPE"`
	InvAge         string  `json:"INVAGE"`
	PedCond        string  `json:"PEDCOND"`
	CycCond        string  `json:"CYCCOND"`
	Pedestrian     string  `json:"PEDESTRIAN"`
	Cyclist        string  `json:"CYCLIST"`
	Automobile     string  `json:"AUTOMOBILE"`
	Motorcycle     string  `json:"MOTORCYCLE"`
	Truck          string  `json:"TRUCK"`
	TransitVehicle string  `json:"TRSN_CITY_VEH"`
	EmergVehicle   string  `json:"EMERG_VEH"`
	Passenger      string  `json:"PASSENGER"`
	Speeding       string  `json:"SPEEDING"`
	Aggressive     string  `json:"AG_DRIV"`
	RedLight       string  `json:"REDLIGHT"`
	Alcohol        string  `json:"ALCOHOL"`
	Disability     string  `json:"DISABILITY"`
	Neighbourhood  string  `json:"NEIGHBOURHOOD_158"`
}

// Normalize converts a record into a PredictionRequest. The record is
// validated first; a *ValidationError is returned if it does not pass.
func Normalize(r Record) (PredictionRequest, error) {
	if err := Validate(r); err != nil {
		return PredictionRequest{}, err
	}
	lat, _ := parseBounded(r.Coordinate(FieldLatitude), MinLatitude, MaxLatitude)
	lng, _ := parseBounded(r.Coordinate(FieldLongitude), MinLongitude, MaxLongitude)

	return PredictionRequest{
		Date:           stripSpace(r.Get(FieldDate)),
		Time:           r.Get(FieldTime),
		RoadClass:      r.Get(FieldRoadClass),
		District:       r.Get(FieldDistrict),
		Latitude:       lat,
		Longitude:      lng,
		AccLoc:         r.Get(FieldAccLoc),
		TraffCtl:       r.Get(FieldTraffCtl),
		Visibility:     r.Get(FieldVisibility),
		Light:          r.Get(FieldLight),
		RdSfCond:       r.Get(FieldRdSfCond),
		ImpactType:     r.Get(FieldImpactType),
		InvType:        r.Get(FieldInvType),
		InvAge:         r.Get(FieldInvAge),
		PedCond:        r.Get(FieldPedCond),
		CycCond:        r.Get(FieldCycCond),
		Pedestrian:     r.Get(FieldPedestrian),
		Cyclist:        r.Get(FieldCyclist),
		Automobile:     r.Get(FieldAutomobile),
		Motorcycle:     r.Get(FieldMotorcycle),
		Truck:          r.Get(FieldTruck),
		TransitVehicle: r.Get(FieldTransitVehicle),
		EmergVehicle:   r.Get(FieldEmergVehicle),
		Passenger:      r.Get(FieldPassenger),
		Speeding:       r.Get(FieldSpeeding),
		Aggressive:     r.Get(FieldAggressive),
		RedLight:       r.Get(FieldRedLight),
		Alcohol:        r.Get(FieldAlcohol),
		Disability:     r.Get(FieldDisability),
		Neighbourhood:  r.Get(FieldNeighbourhood),
	}, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
