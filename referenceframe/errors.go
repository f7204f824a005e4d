package referenceframe

import (
	"github.com/pkg/errors"
)

// ErrNoModelInformation is used when a URDF document is empty.
var ErrNoModelInformation = errors.New("no model information")

var errNoGeometryDefined = errors.New("couldn't parse xml: no geometry defined")

// NewUnsupportedJointTypeError is used when a URDF joint has a type that cannot be represented.
func NewUnsupportedJointTypeError(jointType string) error {
	return errors.Errorf("unsupported joint type detected: %q", jointType)
}

// NewFrameNotInListOfTransformsError is used when a joint references a link the model does not define.
func NewFrameNotInListOfTransformsError(frameName string) error {
	return errors.Errorf("frame named '%s' not in the list of transforms", frameName)
}

// NewLinkNotFoundError is used when a link is looked up that the model does not define.
func NewLinkNotFoundError(linkName string) error {
	return errors.Errorf("link %q not found in model", linkName)
}

// NewUnsupportedGeometryError is used when a collision element uses a shape that cannot be
// represented, such as a mesh.
func NewUnsupportedGeometryError(linkName, shape string) error {
	return errors.Errorf("link %q has unsupported %s collision geometry", linkName, shape)
}

func newJointLengthMismatchError(names, positions int) error {
	return errors.Errorf("joint state has %d names but %d positions", names, positions)
}
