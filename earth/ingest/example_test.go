package ingest_test

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-reflect/earth/ingest"
)

func ExampleLayersFromPoints() {
	profile := `0 6.0 3.5 2.7
30 6.5 3.6 2.8
mantle
30 8.0 4.5 3.3
`

	points, err := ingest.ParseND(strings.NewReader(profile))
	if err != nil {
		panic(err)
	}

	layers, err := ingest.LayersFromPoints(points, 30)
	if err != nil {
		panic(err)
	}

	for _, l := range layers {
		fmt.Printf("%.1f km vp %.2f (%+.4f/km) %s\n", l.Thickness, l.Vp, l.VpGradient, l.Type)
	}
	// Output:
	// 30.0 km vp 6.00 (+0.0167/km) crust
	// 0.0 km vp 6.50 (+0.0000/km) crust
}
