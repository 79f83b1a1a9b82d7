package policy

import (
	"fmt"

	"github.com/md-rashed-zaman/salonagenda/libs/config"
)

// LoadDefaults returns Default() overlaid with the YAML file at path (if it exists)
// and the timezone override (if non-empty).
func LoadDefaults(path, timezone string) (OperatingHours, error) {
	d := Default()
	if _, err := config.LoadYAML(path, &d); err != nil {
		return OperatingHours{}, err
	}
	if timezone != "" {
		d.Timezone = timezone
	}
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return OperatingHours{}, fmt.Errorf("default policy: %w", err)
	}
	return d, nil
}
