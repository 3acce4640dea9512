package model

import "context"

const (
	defaultInputName  = "images"
	defaultOutputName = "output0"
	defaultImageSize  = 224
)

// Metadata describes the tensors and label table of an exported classifier.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// Result is the top-1 entry of a model's output distribution.
type Result struct {
	ClassID    int
	Label      string
	Confidence float32
	NumClasses int
}

// Backend is a loaded model that classifies an image stored on disk.
// Implementations are read-only after construction and safe for concurrent use.
type Backend interface {
	Name() string
	PredictFile(ctx context.Context, path string) (Result, error)
	Close() error
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = defaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = defaultOutputName
	}
	if m.ImageSize <= 0 {
		if len(m.InputShape) == 4 && m.InputShape[2] > 0 {
			m.ImageSize = int(m.InputShape[2])
		} else {
			m.ImageSize = defaultImageSize
		}
	}
	if len(m.InputShape) == 0 {
		size := int64(m.ImageSize)
		m.InputShape = []int64{1, 3, size, size}
	}
	if len(m.OutputShape) == 0 && len(m.Classes) > 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
}
