// Package models - Definitions for model output class styles and sets.
package models

// ModelFamily is the family of models.
type ModelFamily string

const (
	// ModelFamilyYOLO is the Ultralytics YOLO family: 80 COCO classes, zero-based, no background.
	ModelFamilyYOLO ModelFamily = "yolo"
	// ModelFamilyCustom is any model whose labels come from configuration or model metadata.
	ModelFamilyCustom ModelFamily = "custom"
)
