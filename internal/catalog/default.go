package catalog

// Vendor network codes.
const (
	NetworkMTN = 1
	NetworkGlo = 2
)

// DefaultNetworks maps a network name to the vendor's carrier code.
var defaultNetworks = map[string]int{
	"mtn": NetworkMTN,
	"glo": NetworkGlo,
}

// Default returns the built-in catalog.
// glo-10gb (vendor plan 512) is sold by the vendor but has no agreed price, so it is not listed.
func Default() *Catalog {
	c, err := New([]Plan{
		{ID: "mtn-1gb", Network: "mtn", VendorPlanCode: 1001, Price: 500, CarrierCode: NetworkMTN},
		{ID: "mtn-2gb", Network: "mtn", VendorPlanCode: 6666, Price: 1000, CarrierCode: NetworkMTN},
		{ID: "mtn-5gb", Network: "mtn", VendorPlanCode: 9999, Price: 2000, CarrierCode: NetworkMTN},
		{ID: "mtn-10gb", Network: "mtn", VendorPlanCode: 1110, Price: 4000, CarrierCode: NetworkMTN},
		{ID: "glo-1gb", Network: "glo", VendorPlanCode: 206, Price: 500, CarrierCode: NetworkGlo},
		{ID: "glo-5gb", Network: "glo", VendorPlanCode: 222, Price: 2500, CarrierCode: NetworkGlo},
	})
	if err != nil {
		panic("catalog: invalid default catalog: " + err.Error())
	}
	return c
}
