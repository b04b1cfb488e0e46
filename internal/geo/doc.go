// Package geo holds the spherical geometry used by place clustering.
//
// Responsibilities: a fixed-size Cartesian vector type, projection of
// longitude/latitude fixes onto the unit sphere and back, and great-circle
// distances.
// Key types: Vec, Fix, Sphere, Converter.
//
// No clustering state lives here; see internal/places.
package geo
