package referenceframe

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/selfcollision/spatialmath"
)

// collision is a struct which details the XML used in a URDF collision geometry.
type collision struct {
	XMLName  xml.Name `xml:"collision"`
	Origin   *pose    `xml:"origin"`
	Geometry struct {
		XMLName  xml.Name  `xml:"geometry"`
		Box      *box      `xml:"box,omitempty"`
		Sphere   *sphere   `xml:"sphere,omitempty"`
		Cylinder *cylinder `xml:"cylinder,omitempty"`
		Mesh     *mesh     `xml:"mesh,omitempty"`
	} `xml:"geometry"`
}

type box struct {
	XMLName xml.Name `xml:"box"`
	Size    string   `xml:"size,attr"` // "x y z" format, in meters
}

type sphere struct {
	XMLName xml.Name `xml:"sphere"`
	Radius  float64  `xml:"radius,attr"` // in meters
}

type cylinder struct {
	XMLName xml.Name `xml:"cylinder"`
	Radius  float64  `xml:"radius,attr"` // in meters
	Length  float64  `xml:"length,attr"` // in meters
}

type mesh struct {
	XMLName  xml.Name `xml:"mesh"`
	Filename string   `xml:"filename,attr"`
}

// toGeometry builds the collision geometry in the frame of its link. A mesh reports its shape
// name so the caller can say what was skipped.
func (c *collision) toGeometry(label string) (spatialmath.Geometry, string, error) {
	offset := c.Origin.Parse()
	switch {
	case c.Geometry.Box != nil:
		dims := spaceDelimitedStringToFloatSlice(c.Geometry.Box.Size)
		if len(dims) != 3 {
			return nil, "box", errors.Errorf("box size %q must have three values", c.Geometry.Box.Size)
		}
		g, err := spatialmath.NewBox(offset, r3.Vector{X: dims[0], Y: dims[1], Z: dims[2]}, label)
		return g, "box", err
	case c.Geometry.Sphere != nil:
		g, err := spatialmath.NewSphere(offset, c.Geometry.Sphere.Radius, label)
		return g, "sphere", err
	case c.Geometry.Cylinder != nil:
		g, err := spatialmath.NewCylinder(offset, c.Geometry.Cylinder.Radius, c.Geometry.Cylinder.Length, label)
		return g, "cylinder", err
	case c.Geometry.Mesh != nil:
		return nil, "mesh", NewUnsupportedGeometryError(label, "mesh")
	default:
		return nil, "", errNoGeometryDefined
	}
}

type frame struct {
	Link string `xml:"link,attr"`
}

type limit struct {
	XMLName xml.Name `xml:"limit"`
	Lower   float64  `xml:"lower,attr"` // translation limits are in meters, revolute limits are in radians
	Upper   float64  `xml:"upper,attr"` // translation limits are in meters, revolute limits are in radians
}

type axis struct {
	XMLName xml.Name `xml:"axis"`
	XYZ     string   `xml:"xyz,attr"` // "x y z" format, unit length
}

// Parse returns the joint axis, defaulting to +X as URDF does.
func (a *axis) Parse() r3.Vector {
	if a == nil {
		return r3.Vector{X: 1}
	}
	xyz := spaceDelimitedStringToFloatSlice(a.XYZ)
	if len(xyz) != 3 {
		return r3.Vector{X: 1}
	}
	v := r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}
	if v.Norm() == 0 || !spatialmath.IsFinite(v) {
		return r3.Vector{X: 1}
	}
	return v.Normalize()
}

type pose struct {
	XMLName xml.Name `xml:"origin"`
	RPY     string   `xml:"rpy,attr"` // Fixed frame angle "r p y" format, in radians
	XYZ     string   `xml:"xyz,attr"` // "x y z" format, in meters
}

// Parse returns the offset described by an origin element. A missing element or attribute is
// the identity.
func (p *pose) Parse() spatialmath.Pose {
	if p == nil {
		return spatialmath.NewZeroPose()
	}
	xyz := padTo3(spaceDelimitedStringToFloatSlice(p.XYZ))
	rpy := padTo3(spaceDelimitedStringToFloatSlice(p.RPY))
	return spatialmath.NewPose(
		r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]},
		&spatialmath.EulerAngles{Roll: rpy[0], Pitch: rpy[1], Yaw: rpy[2]},
	)
}

func padTo3(values []float64) []float64 {
	for len(values) < 3 {
		values = append(values, 0)
	}
	return values
}

// spaceDelimitedStringToFloatSlice is a helper method to split up space-delimited fields in a string and converts them to floats.
func spaceDelimitedStringToFloatSlice(s string) []float64 {
	var converted []float64
	slice := strings.Fields(s)
	for _, value := range slice {
		value, err := strconv.ParseFloat(value, 64)
		if err != nil {
			value = math.NaN()
		}
		converted = append(converted, value)
	}
	return converted
}
