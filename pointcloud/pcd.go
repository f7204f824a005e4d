package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/selfcollision/spatialmath"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// PCD is the decoded contents of a pcd file. Viewpoint is the acquisition pose recorded in the header.
type PCD struct {
	Points    []r3.Vector
	Viewpoint spatialmath.Pose
}

// NewFromFile returns the points read in from the given pcd file.
func NewFromFile(fn string) (*PCD, error) {
	if ext := filepath.Ext(fn); ext != ".pcd" {
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadPCD(f)
}

// WriteToFile writes the points to the named file as a pcd.
func WriteToFile(points []r3.Vector, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := ToPCD(points, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

// ToPCD writes the points as an unorganized cloud with x y z float fields.
func ToPCD(points []r3.Vector, out io.Writer, outputType PCDType) error {
	var data string
	switch outputType {
	case PCDBinary:
		data = "binary"
	case PCDAscii:
		data = "ascii"
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown PCD type %d", outputType)
	}

	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		len(points), len(points), data)
	if err != nil {
		return err
	}

	buf := make([]byte, 12)
	for _, pt := range points {
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pt.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pt.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pt.Z)))
			_, err = out.Write(buf)
		default:
			_, err = fmt.Fprintf(out, "%f %f %f\n", pt.X, pt.Y, pt.Z)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type pcdValType string

const (
	pcdValFloat pcdValType = "F"
	pcdValInt   pcdValType = "I"
	pcdValUInt  pcdValType = "U"
)

type pcdHeader struct {
	fields    []string
	size      []uint64
	type_     []pcdValType
	count     []uint64
	width     uint64
	height    uint64
	viewpoint spatialmath.Pose
	points    uint64
	data      PCDType
	// index of the x, y and z fields within fields
	xyz [3]int
}

// stride is the number of bytes one point takes in a binary body.
func (h *pcdHeader) stride() int {
	total := 0
	for i := range h.fields {
		total += int(h.size[i] * h.count[i])
	}
	return total
}

// offset is the byte offset of field i within a binary point.
func (h *pcdHeader) offset(field int) int {
	total := 0
	for i := 0; i < field; i++ {
		total += int(h.size[i] * h.count[i])
	}
	return total
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, pcdHeader *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return fmt.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return fmt.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		pcdHeader.fields = tokens
		for i, axis := range []string{"x", "y", "z"} {
			pcdHeader.xyz[i] = -1
			for j, token := range tokens {
				if token == axis {
					pcdHeader.xyz[i] = j
				}
			}
			if pcdHeader.xyz[i] < 0 {
				return fmt.Errorf("unsupported pcd fields %s: missing %s", value, axis)
			}
		}
	case "SIZE":
		if len(tokens) != len(pcdHeader.fields) {
			return fmt.Errorf("unexpected number of fields in SIZE line")
		}
		pcdHeader.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			pcdHeader.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid SIZE field %s", token)
			}
		}
	case "TYPE":
		if len(tokens) != len(pcdHeader.fields) {
			return fmt.Errorf("unexpected number of fields in TYPE line")
		}
		pcdHeader.type_ = make([]pcdValType, len(tokens))
		for i, token := range tokens {
			pcdHeader.type_[i] = pcdValType(token)
		}
		for _, i := range pcdHeader.xyz {
			if pcdHeader.type_[i] != pcdValFloat || (pcdHeader.size[i] != 4 && pcdHeader.size[i] != 8) {
				return fmt.Errorf("field %s must be a 4 or 8 byte float", pcdHeader.fields[i])
			}
		}
	case "COUNT":
		if len(tokens) != len(pcdHeader.fields) {
			return fmt.Errorf("unexpected number of fields in COUNT line")
		}
		pcdHeader.count = make([]uint64, len(tokens))
		for i, token := range tokens {
			pcdHeader.count[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid COUNT field %s: %w", token, err)
			}
		}
	case "WIDTH":
		pcdHeader.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid WIDTH field %s: %w", value, err)
		}
	case "HEIGHT":
		pcdHeader.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid HEIGHT field %s: %w", value, err)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return fmt.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
		viewpoint := [7]float64{}
		for i, token := range tokens {
			viewpoint[i], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return fmt.Errorf("invalid VIEWPOINT field %s: %w", token, err)
			}
		}
		q := spatialmath.Quaternion(quat.Number{Real: viewpoint[3], Imag: viewpoint[4], Jmag: viewpoint[5], Kmag: viewpoint[6]})
		pcdHeader.viewpoint = spatialmath.NewPose(r3.Vector{X: viewpoint[0], Y: viewpoint[1], Z: viewpoint[2]}, &q)
	case "POINTS":
		var points uint64
		points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid POINTS field %s: %w", value, err)
		}
		if points != pcdHeader.width*pcdHeader.height {
			return fmt.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, pcdHeader.width*pcdHeader.height)
		}
		pcdHeader.points = points
	case "DATA":
		switch value {
		case "ascii":
			pcdHeader.data = PCDAscii
		case "binary":
			pcdHeader.data = PCDBinary
		case "binary_compressed":
			pcdHeader.data = PCDCompressed
		default:
			return fmt.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// ReadPCD decodes a pcd stream. Points keep their file order; NaN coordinates are preserved.
func ReadPCD(inRaw io.Reader) (*PCD, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	var line string
	var err error
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err = in.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading header line %d: %w", headerLineCount, err)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}

	var points []r3.Vector
	switch header.data {
	case PCDAscii:
		points, err = readPCDAscii(in, header)
	case PCDBinary:
		points, err = readPCDBinary(in, header)
	default:
		return nil, errors.New("compressed pcd not yet supported")
	}
	if err != nil {
		return nil, err
	}
	return &PCD{Points: points, Viewpoint: header.viewpoint}, nil
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) ([]r3.Vector, error) {
	// ascii values are one token per count, so map field indices to token indices
	tokenIndex := make([]int, len(header.fields))
	total := 0
	for i := range header.fields {
		tokenIndex[i] = total
		total += int(header.count[i])
	}

	points := make([]r3.Vector, 0, header.points)
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, fmt.Errorf("reading point %d: %w", i, err)
		}
		tokens := strings.Fields(line)
		if len(tokens) != total {
			return nil, fmt.Errorf("unexpected number of fields in point %d", i)
		}
		var xyz [3]float64
		for axis, field := range header.xyz {
			xyz[axis], err = strconv.ParseFloat(tokens[tokenIndex[field]], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid point %d field %s: %w", i, tokens[tokenIndex[field]], err)
			}
		}
		points = append(points, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return points, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) ([]r3.Vector, error) {
	stride := header.stride()
	buf := make([]byte, stride)
	points := make([]r3.Vector, 0, header.points)
	for i := 0; i < int(header.points); i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, fmt.Errorf("reading point %d: %w", i, err)
		}
		var xyz [3]float64
		for axis, field := range header.xyz {
			off := header.offset(field)
			if header.size[field] == 8 {
				xyz[axis] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
			} else {
				xyz[axis] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
			}
		}
		points = append(points, r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return points, nil
}
