package ros

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/selfcollision/pointcloud"
	"go.viam.com/selfcollision/referenceframe"
	"go.viam.com/selfcollision/spatialmath"
	"go.viam.com/selfcollision/transform"
)

// PointField datatypes from sensor_msgs/PointField.
const (
	Int8    = 1
	Uint8   = 2
	Int16   = 3
	Uint16  = 4
	Int32   = 5
	Uint32  = 6
	Float32 = 7
	Float64 = 8
)

// Time is a ROS time. Bags may render it as {"secs":..,"nsecs":..}, as a [secs, nsecs] pair or
// as fractional seconds.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// UnmarshalJSON accepts every rendering of a ROS time.
func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*t = Time{}
		return nil
	case data[0] == '{':
		type plain Time
		return json.Unmarshal(data, (*plain)(t))
	case data[0] == '[':
		var pair []int64
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return errors.Errorf("time needs 2 values, got %d", len(pair))
		}
		t.Secs, t.Nsecs = pair[0], pair[1]
		return nil
	default:
		var secs float64
		if err := json.Unmarshal(data, &secs); err != nil {
			return err
		}
		whole, frac := math.Modf(secs)
		t.Secs, t.Nsecs = int64(whole), int64(math.Round(frac*1e9))
		return nil
	}
}

// Time converts to a time.Time.
func (t Time) Time() time.Time {
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Bool is a ROS bool, rendered either as a JSON bool or as 0/1.
type Bool bool

// UnmarshalJSON accepts true/false and numbers.
func (b *Bool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case bool:
		*b = Bool(val)
	case float64:
		*b = val != 0
	case nil:
		*b = false
	default:
		return errors.Errorf("cannot read %s as a bool", data)
	}
	return nil
}

// ByteArray is a uint8[] field, rendered either as an array of numbers or as base64.
type ByteArray []byte

// UnmarshalJSON accepts both renderings.
func (a *ByteArray) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return errors.Wrap(err, "bad base64 byte array")
		}
		*a = decoded
		return nil
	}
	var values []uint8
	if err := json.Unmarshal(data, &values); err != nil {
		return errors.Wrap(err, "bad byte array")
	}
	*a = values
	return nil
}

// PointField is sensor_msgs/PointField.
type PointField struct {
	Name     string `json:"name"`
	Offset   uint32 `json:"offset"`
	Datatype uint8  `json:"datatype"`
	Count    uint32 `json:"count"`
}

// PointCloud2 is sensor_msgs/PointCloud2.
type PointCloud2 struct {
	Header      Header       `json:"header"`
	Height      uint32       `json:"height"`
	Width       uint32       `json:"width"`
	Fields      []PointField `json:"fields"`
	IsBigendian Bool         `json:"is_bigendian"`
	PointStep   uint32       `json:"point_step"`
	RowStep     uint32       `json:"row_step"`
	Data        ByteArray    `json:"data"`
	IsDense     Bool         `json:"is_dense"`
}

// Sample extracts the x, y and z fields of every point. The cloud may be organized; rows are read
// by row_step and padding at the end of a row is ignored. Non-finite points are kept.
func (pc *PointCloud2) Sample() (pointcloud.Sample, error) {
	readers := make([]func([]byte) float64, 3)
	for i, name := range []string{"x", "y", "z"} {
		field, ok := lo.Find(pc.Fields, func(f PointField) bool { return f.Name == name })
		if !ok {
			return pointcloud.Sample{}, errors.Errorf("point cloud has no %s field", name)
		}
		reader, err := fieldReader(field, pc.PointStep, bool(pc.IsBigendian))
		if err != nil {
			return pointcloud.Sample{}, err
		}
		readers[i] = reader
	}

	// sizes are checked in 64 bits so a corrupt header cannot wrap past the data length; the
	// data check also bounds the allocation below
	pointStep, width, height := uint64(pc.PointStep), uint64(pc.Width), uint64(pc.Height)
	rowStep := uint64(pc.RowStep)
	if rowStep == 0 {
		rowStep = pointStep * width
	}
	if rowStep < pointStep*width {
		return pointcloud.Sample{}, errors.Errorf("row_step %d is shorter than %d points of %d bytes",
			rowStep, width, pointStep)
	}
	if rowStep > math.MaxUint32 {
		return pointcloud.Sample{}, errors.Errorf("%d points of %d bytes do not fit in a row", width, pointStep)
	}
	if need := rowStep * height; uint64(len(pc.Data)) < need {
		return pointcloud.Sample{}, errors.Errorf("point cloud data has %d bytes, expected %d", len(pc.Data), need)
	}

	points := make([]r3.Vector, 0, width*height)
	for row := uint64(0); row < height; row++ {
		for col := uint64(0); col < width; col++ {
			start := row*rowStep + col*pointStep
			pt := pc.Data[start : start+pointStep]
			points = append(points, r3.Vector{X: readers[0](pt), Y: readers[1](pt), Z: readers[2](pt)})
		}
	}
	return pointcloud.NewSample(FrameID(pc.Header.FrameID), pc.Header.Stamp.Time(), points), nil
}

func fieldReader(f PointField, pointStep uint32, bigEndian bool) (func([]byte) float64, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	var size uint32
	var read func([]byte) float64
	switch f.Datatype {
	case Float32:
		size = 4
		read = func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }
	case Float64:
		size = 8
		read = func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }
	default:
		return nil, errors.Errorf("point field %s has datatype %d, only FLOAT32 and FLOAT64 are supported",
			f.Name, f.Datatype)
	}
	if uint64(f.Offset)+uint64(size) > uint64(pointStep) {
		return nil, errors.Errorf("point field %s at offset %d does not fit in point_step %d", f.Name, f.Offset, pointStep)
	}
	off := f.Offset
	return func(pt []byte) float64 { return read(pt[off : off+size]) }, nil
}

// NewPointCloud2 packs points as little endian FLOAT32 x, y, z.
func NewPointCloud2(frame string, stamp time.Time, points []r3.Vector) *PointCloud2 {
	const step = 12
	data := make([]byte, 0, len(points)*step)
	for _, p := range points {
		for _, v := range []float64{p.X, p.Y, p.Z} {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(float32(v)))
		}
	}
	return &PointCloud2{
		Header: Header{Stamp: Time{Secs: stamp.Unix(), Nsecs: int64(stamp.Nanosecond())}, FrameID: frame},
		Height: 1,
		Width:  uint32(len(points)),
		Fields: []PointField{
			{Name: "x", Offset: 0, Datatype: Float32, Count: 1},
			{Name: "y", Offset: 4, Datatype: Float32, Count: 1},
			{Name: "z", Offset: 8, Datatype: Float32, Count: 1},
		},
		PointStep: step,
		RowStep:   uint32(len(points)) * step,
		Data:      data,
	}
}

// Vector3 is geometry_msgs/Vector3 or geometry_msgs/Point.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func toPose(p Vector3, q Quaternion) spatialmath.Pose {
	return spatialmath.NewPose(r3.Vector{X: p.X, Y: p.Y, Z: p.Z}, spatialmath.NewQuaternion(q.W, q.X, q.Y, q.Z))
}

// JointState is sensor_msgs/JointState.
type JointState struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Effort   []float64 `json:"effort"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// JointStateWithPose is jsk_recognition_msgs/JointStateWithPose: the joint positions together
// with the pose of the robot body in the world.
type JointStateWithPose struct {
	Header Header     `json:"header"`
	Joint  JointState `json:"joint"`
	Pose   Pose       `json:"pose"`
}

// JointConfiguration converts the message. The outer header's stamp is used unless it is zero.
func (js *JointStateWithPose) JointConfiguration() (referenceframe.JointConfiguration, error) {
	stamp := js.Header.Stamp.Time()
	if js.Header.Stamp == (Time{}) {
		stamp = js.Joint.Header.Stamp.Time()
	}
	return referenceframe.NewJointConfiguration(stamp, js.Joint.Name, js.Joint.Position,
		toPose(js.Pose.Position, js.Pose.Orientation))
}

// Transform is geometry_msgs/Transform.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// TransformStamped is geometry_msgs/TransformStamped.
type TransformStamped struct {
	Header       Header    `json:"header"`
	ChildFrameID string    `json:"child_frame_id"`
	Transform    Transform `json:"transform"`
}

// TFMessage is tf2_msgs/TFMessage.
type TFMessage struct {
	Transforms []TransformStamped `json:"transforms"`
}

// Stamped converts every transform in the message.
func (tf *TFMessage) Stamped() []transform.Stamped {
	return lo.Map(tf.Transforms, func(t TransformStamped, _ int) transform.Stamped {
		return transform.Stamped{
			Parent: FrameID(t.Header.FrameID),
			Child:  FrameID(t.ChildFrameID),
			Stamp:  t.Header.Stamp.Time(),
			Pose:   toPose(t.Transform.Translation, t.Transform.Rotation),
		}
	})
}

// FrameID drops the leading slash tf1 allowed, so "/map" and "map" name the same frame.
func FrameID(id string) string {
	return strings.TrimPrefix(id, "/")
}
