package collision

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed options.toml
var optionsTOML string

// OptionCatalogue holds the selectable values of every category field.
type OptionCatalogue struct {
	District            []string `toml:"district"`
	Neighbourhood       []string `toml:"neighbourhood"`
	RoadClass           []string `toml:"road_class"`
	ImpactType          []string `toml:"impact_type"`
	AccidentLocation    []string `toml:"accident_location"`
	TrafficControl      []string `toml:"traffic_control"`
	Visibility          []string `toml:"visibility"`
	Light               []string `toml:"light"`
	RoadSurface         []string `toml:"road_surface"`
	InvolvementType     []string `toml:"involvement_type"`
	InvolvedAge         []string `toml:"involved_age"`
	PedestrianCondition []string `toml:"pedestrian_condition"`
	CyclistCondition    []string `toml:"cyclist_condition"`
}

var (
	catalogueOnce sync.Once
	catalogue     OptionCatalogue
)

// Catalogue returns the embedded option catalogue. It panics if the embedded
// document is malformed, which can only happen at build time.
func Catalogue() OptionCatalogue {
	catalogueOnce.Do(func() {
		c, err := ParseCatalogue(optionsTOML)
		if err != nil {
			panic(err)
		}
		catalogue = c
	})
	return catalogue
}

// ParseCatalogue decodes a TOML option catalogue. Neighbourhoods are sorted.
func ParseCatalogue(doc string) (OptionCatalogue, error) {
	var c OptionCatalogue
	md, err := toml.Decode(doc, &c)
	if err != nil {
		return OptionCatalogue{}, fmt.Errorf("decoding option catalogue: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return OptionCatalogue{}, fmt.Errorf("unknown catalogue keys: %v", undecoded)
	}
	sort.Strings(c.Neighbourhood)
	return c, nil
}

// OptionsFor returns a copy of the options for a category field, or nil for
// fields without a catalogue entry.
func (c OptionCatalogue) OptionsFor(f Field) []string {
	var opts []string
	switch f {
	case FieldDistrict:
		opts = c.District
	case FieldNeighbourhood:
		opts = c.Neighbourhood
	case FieldRoadClass:
		opts = c.RoadClass
	case FieldImpactType:
		opts = c.ImpactType
	case FieldAccLoc:
		opts = c.AccidentLocation
	case FieldTraffCtl:
		opts = c.TrafficControl
	case FieldVisibility:
		opts = c.Visibility
	case FieldLight:
		opts = c.Light
	case FieldRdSfCond:
		opts = c.RoadSurface
	case FieldInvType:
		opts = c.InvolvementType
	case FieldInvAge:
		opts = c.InvolvedAge
	case FieldPedCond:
		opts = c.PedestrianCondition
	case FieldCycCond:
		opts = c.CyclistCondition
	default:
		return nil
	}
	return append([]string(nil), opts...)
}
