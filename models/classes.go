package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a style to its full list of labels.
//
// Indices need not be contiguous; a custom model may skip ids.
type OutputClassSet struct {
	// Class set identifier.
	Style ModelFamily
	// Classes sorted by index.
	Classes []OutputClass

	byIndex map[int]string
}

// NewClassSet builds a class set from an index to name mapping.
//
// Arguments:
//   - style: The family the labels belong to.
//   - names: The labels keyed by model class index.
//
// Returns:
//   - *OutputClassSet: The class set.
func NewClassSet(style ModelFamily, names map[int]string) *OutputClassSet {
	s := &OutputClassSet{
		Style:   style,
		Classes: make([]OutputClass, 0, len(names)),
		byIndex: make(map[int]string, len(names)),
	}
	for idx, name := range names {
		s.Classes = append(s.Classes, OutputClass{Index: idx, Name: name})
		s.byIndex[idx] = name
	}
	sort.Slice(s.Classes, func(i, j int) bool { return s.Classes[i].Index < s.Classes[j].Index })
	return s
}

// NewClassSetFromList builds a class set from zero-based ordered labels.
func NewClassSetFromList(style ModelFamily, names []string) *OutputClassSet {
	m := make(map[int]string, len(names))
	for i, name := range names {
		m[i] = name
	}
	return NewClassSet(style, m)
}

// Name returns the label for idx.
//
// Arguments:
//   - idx: The class index produced by the model.
//
// Returns:
//   - string: The label.
//   - error: If idx is not part of the set.
func (s *OutputClassSet) Name(idx int) (string, error) {
	name, ok := s.byIndex[idx]
	if !ok {
		return "", fmt.Errorf("index %d out of range for style %q (%d classes)", idx, s.Style, len(s.byIndex))
	}
	return name, nil
}

// Len returns the number of classes in the set.
func (s *OutputClassSet) Len() int { return len(s.byIndex) }

// ParseClassNames parses a label table as stored in model metadata.
//
// Ultralytics exports write the "names" entry as a Python dict literal such as
// {0: 'person', 1: 'bicycle'}, which is also valid YAML flow syntax. A plain
// list ['person', 'bicycle'] is accepted as well.
//
// Arguments:
//   - raw: The metadata value.
//
// Returns:
//   - map[int]string: The labels keyed by class index.
//   - error: If raw is empty or neither a mapping nor a list.
func ParseClassNames(raw string) (map[int]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty class names")
	}

	var byIndex map[int]string
	if err := yaml.Unmarshal([]byte(raw), &byIndex); err == nil && len(byIndex) > 0 {
		return byIndex, nil
	}

	var list []string
	if err := yaml.Unmarshal([]byte(raw), &list); err != nil {
		return nil, errors.Wrap(err, "class names are neither a mapping nor a list")
	}
	if len(list) == 0 {
		return nil, errors.New("empty class names")
	}

	byIndex = make(map[int]string, len(list))
	for i, name := range list {
		byIndex[i] = name
	}
	return byIndex, nil
}

// COCONames is the 80 COCO labels in the zero-based order YOLO models use.
var COCONames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// YOLOClasses is the builtin label table for models that carry no metadata.
var YOLOClasses = NewClassSetFromList(ModelFamilyYOLO, COCONames)
