package main

import (
	"fmt"

	"github.com/bbernstein/fuelreg/backend-go/internal/geo"
)

type DistanceCommand struct {
	Args struct {
		Lat1 float64 `positional-arg-name:"lat1"`
		Lon1 float64 `positional-arg-name:"lon1"`
		Lat2 float64 `positional-arg-name:"lat2"`
		Lon2 float64 `positional-arg-name:"lon2"`
	} `positional-args:"yes" required:"yes"`
}

func (c *DistanceCommand) Execute(_ []string) error {
	a := c.Args
	if !geo.ValidLatitude(a.Lat1) || !geo.ValidLatitude(a.Lat2) ||
		!geo.ValidLongitude(a.Lon1) || !geo.ValidLongitude(a.Lon2) {
		return fmt.Errorf("coordinates out of range")
	}

	km := geo.DistanceKm(a.Lat1, a.Lon1, a.Lat2, a.Lon2)
	fmt.Fprintf(stdout, "%.6f km (%.1f m)\n", km, km*1000)
	return nil
}
