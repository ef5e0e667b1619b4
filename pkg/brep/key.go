package brep

import (
	"fmt"
	"math"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
)

// keySpace namespaces every Key derived in this package.
var keySpace = uuid.MustParse("6f1d3c2a-9b84-4e57-a0c1-5d2e7f83b419")

// Key is a stable identity for a face or edge. It is a name-based UUID over
// geometry rounded to Tolerance, so two builds of the same body agree.
type Key uuid.UUID

// NilKey is the zero Key.
var NilKey Key

// NewKey hashes the given parts into a Key.
func NewKey(parts ...string) Key {
	return Key(uuid.NewSHA1(keySpace, []byte(strings.Join(parts, "\x1f"))))
}

func (k Key) String() string { return uuid.UUID(k).String() }

// Short returns the first eight hex digits, for logs.
func (k Key) Short() string { return k.String()[:8] }

// IsZero reports whether k is NilKey.
func (k Key) IsZero() bool { return k == NilKey }

// FaceKey identifies f by its body name and reference point.
func FaceKey(f *Face) Key {
	return NewKey(f.body.Name, "face", PointString(f.ReferencePoint()))
}

// EdgeKey identifies e by its body name and endpoints, independent of
// their order.
func EdgeKey(body string, e *Edge) Key {
	a, c := PointString(e.Start.Point), PointString(e.End.Point)
	if a > c {
		a, c = c, a
	}
	return NewKey(body, "edge", a, c)
}

// PointString formats p rounded to Tolerance.
func PointString(p v3.Vec) string {
	return fmt.Sprintf("%.6f,%.6f,%.6f", round(p.X), round(p.Y), round(p.Z))
}

func round(x float64) float64 {
	r := math.Round(x/Tolerance) * Tolerance
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
