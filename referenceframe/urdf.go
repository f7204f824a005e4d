package referenceframe

import (
	"encoding/xml"
	"math"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/selfcollision/logging"
)

// The joint types found in URDF documents.
const (
	FixedJoint      = "fixed"
	RevoluteJoint   = "revolute"
	ContinuousJoint = "continuous"
	PrismaticJoint  = "prismatic"
	FloatingJoint   = "floating"
	PlanarJoint     = "planar"
)

// URDFConfig represents all supported fields in a Universal Robot Description Format (URDF) file.
type URDFConfig struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []URDFLink  `xml:"link"`
	Joints  []URDFJoint `xml:"joint"`
}

// URDFLink is a struct which details the XML used in a URDF link element.
type URDFLink struct {
	XMLName   xml.Name    `xml:"link"`
	Name      string      `xml:"name,attr"`
	Collision []collision `xml:"collision"`
}

// URDFJoint is a struct which details the XML used in a URDF joint element.
type URDFJoint struct {
	XMLName xml.Name `xml:"joint"`
	Name    string   `xml:"name,attr"`
	Type    string   `xml:"type,attr"`
	Parent  frame    `xml:"parent"`
	Child   frame    `xml:"child"`
	Origin  *pose    `xml:"origin,omitempty"`
	Axis    *axis    `xml:"axis,omitempty"`
	Limit   *limit   `xml:"limit,omitempty"`
}

// ParseURDFFile will read a given file and parse the contained URDF XML data into an equivalent Model.
func ParseURDFFile(filename string, logger logging.Logger) (*Model, error) {
	//nolint:gosec
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}
	return ParseURDF(xmlData, logger)
}

// ParseURDF converts URDF XML data into a Model. Collision elements that cannot be represented
// are logged and leave their link without geometry. Floating and planar joints have no single
// position value and are treated as fixed.
func ParseURDF(xmlData []byte, logger logging.Logger) (*Model, error) {
	// empty data probably means that the read URDF has no actionable information
	if len(xmlData) == 0 {
		return nil, ErrNoModelInformation
	}

	urdf := &URDFConfig{}
	if err := xml.Unmarshal(xmlData, urdf); err != nil {
		return nil, errors.Wrap(err, "failed to convert URDF data to equivalent URDFConfig struct")
	}

	m := NewEmptyModel(urdf.Name)

	// Read all links first
	for _, linkElem := range urdf.Links {
		l := &Link{Name: linkElem.Name}
		if len(linkElem.Collision) > 0 {
			geometry, shape, err := linkElem.Collision[0].toGeometry(linkElem.Name)
			if err != nil {
				logger.Warnw("skipping link collision geometry", "link", linkElem.Name, "error", err)
				l.UnsupportedShape = shape
			} else {
				l.Geometry = geometry
			}
		}
		m.links[l.Name] = l
	}

	// Read the joints next
	for _, jointElem := range urdf.Joints {
		j := &Joint{
			Name:   jointElem.Name,
			Type:   jointElem.Type,
			Parent: jointElem.Parent.Link,
			Child:  jointElem.Child.Link,
			Origin: jointElem.Origin.Parse(),
			Axis:   jointElem.Axis.Parse(),
		}
		switch jointElem.Type {
		case RevoluteJoint, PrismaticJoint:
			if jointElem.Limit != nil {
				j.Min, j.Max = jointElem.Limit.Lower, jointElem.Limit.Upper
			}
		case ContinuousJoint:
			// Currently, we treat a continuous joint as an unbounded revolute joint
			j.Type = RevoluteJoint
			j.Min, j.Max = math.Inf(-1), math.Inf(1)
		case FixedJoint:
		case FloatingJoint, PlanarJoint:
			logger.Debugw("treating joint as fixed", "joint", j.Name, "type", j.Type)
			j.Type = FixedJoint
		default:
			return nil, NewUnsupportedJointTypeError(jointElem.Type)
		}

		if _, ok := m.links[j.Parent]; !ok {
			return nil, NewFrameNotInListOfTransformsError(j.Parent)
		}
		if _, ok := m.links[j.Child]; !ok {
			return nil, NewFrameNotInListOfTransformsError(j.Child)
		}
		if _, ok := m.parentJoint[j.Child]; ok {
			return nil, errors.Errorf("link %q has more than one parent joint", j.Child)
		}
		m.joints[j.Name] = j
		m.parentJoint[j.Child] = j
		m.childJoints[j.Parent] = append(m.childJoints[j.Parent], j)
	}
	return m, nil
}
