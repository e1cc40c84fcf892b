package models

import "fmt"

// District lists the markets and crops served in one district.
type District struct {
	Name    string   `yaml:"name"`
	Markets []string `yaml:"markets"`
	Crops   []string `yaml:"crops"`
}

// Catalog is the static district -> {markets, crops} mapping.
// Order is preserved from the source document.
type Catalog struct {
	Districts []District `yaml:"districts"`
}

// Names returns district names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.Districts))
	for _, d := range c.Districts {
		out = append(out, d.Name)
	}
	return out
}

// District returns the named district.
func (c *Catalog) District(name string) (District, error) {
	for _, d := range c.Districts {
		if d.Name == name {
			return d, nil
		}
	}
	return District{}, fmt.Errorf("district %q: %w", name, ErrNotFound)
}

// MarketDistrict returns the district serving market.
func (c *Catalog) MarketDistrict(market string) (District, error) {
	for _, d := range c.Districts {
		for _, m := range d.Markets {
			if m == market {
				return d, nil
			}
		}
	}
	return District{}, fmt.Errorf("market %q: %w", market, ErrNotFound)
}

// Resolve validates (market, crop) and returns the district name.
func (c *Catalog) Resolve(market, crop string) (string, error) {
	d, err := c.MarketDistrict(market)
	if err != nil {
		return "", err
	}
	if !d.Serves(crop) {
		return "", fmt.Errorf("crop %q in %q: %w", crop, market, ErrCropNotServed)
	}
	return d.Name, nil
}

// Serves reports whether crop is in the district's crop list.
func (d District) Serves(crop string) bool {
	for _, c := range d.Crops {
		if c == crop {
			return true
		}
	}
	return false
}

// Validate rejects empty or duplicated entries.
func (c *Catalog) Validate() error {
	if len(c.Districts) == 0 {
		return fmt.Errorf("catalog has no districts")
	}
	seen := make(map[string]string)
	for _, d := range c.Districts {
		if d.Name == "" {
			return fmt.Errorf("catalog district without name")
		}
		if len(d.Markets) == 0 || len(d.Crops) == 0 {
			return fmt.Errorf("district %s: markets and crops are required", d.Name)
		}
		for _, m := range d.Markets {
			if other, ok := seen[m]; ok {
				return fmt.Errorf("market %s listed in both %s and %s", m, other, d.Name)
			}
			seen[m] = d.Name
		}
	}
	return nil
}
