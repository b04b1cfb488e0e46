package places

import "github.com/banshee-data/places/internal/monitoring"

var logf = monitoring.Component("places")
