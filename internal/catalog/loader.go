package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileCatalog struct {
	Networks map[string]int `yaml:"networks"`
	Plans    []filePlan     `yaml:"plans"`
}

type filePlan struct {
	ID         string `yaml:"id"`
	Network    string `yaml:"network"`
	VendorPlan int    `yaml:"vendor_plan"`
	Price      int64  `yaml:"price"`
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog:
//
//	networks:
//	  mtn: 1
//	plans:
//	  - id: mtn-1gb
//	    network: mtn
//	    vendor_plan: 1001
//	    price: 500
//
// When networks is omitted the built-in network codes are used.
func Parse(data []byte) (*Catalog, error) {
	var fc fileCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	networks := fc.Networks
	if len(networks) == 0 {
		networks = defaultNetworks
	}

	plans := make([]Plan, 0, len(fc.Plans))
	for _, fp := range fc.Plans {
		network := strings.ToLower(strings.TrimSpace(fp.Network))
		code, ok := networks[network]
		if !ok {
			return nil, fmt.Errorf("plan %q: unknown network %q", fp.ID, fp.Network)
		}
		plans = append(plans, Plan{
			ID:             strings.TrimSpace(fp.ID),
			Network:        network,
			VendorPlanCode: fp.VendorPlan,
			Price:          fp.Price,
			CarrierCode:    code,
		})
	}
	return New(plans)
}

// Resolve returns the catalog from path, or the built-in catalog when path is empty.
func Resolve(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
