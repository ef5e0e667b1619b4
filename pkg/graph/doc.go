// Package graph defines the assembly graph dogbone works on.
// Component nodes hold a part definition: its boundary representation and
// its kernel solid. Occurrence nodes place one child with a translation and
// rotation, and group nodes gather occurrences into assemblies.
//
// Geometry is stored once, in component (reference) space. Instance space
// is reached through FrameOf, which composes the placements on the path from
// a root down to an occurrence each time it is asked.
package graph
