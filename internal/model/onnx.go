package model

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig locates the exported classifier and the onnxruntime library.
type ONNXConfig struct {
	ModelPath    string
	MetadataPath string
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
}

// ONNXBackend runs an exported YOLO classification model in-process.
// The session reuses one pair of tensors, so Run is serialised by mu.
type ONNXBackend struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	Metadata Metadata
}

func NewONNXBackend(cfg ONNXConfig) (*ONNXBackend, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %w", ErrBackendUnavailable, err)
		}
	}

	metadata, err := loadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}
	if err := fillFromModel(cfg.ModelPath, &metadata); err != nil {
		return nil, err
	}
	metadata.applyDefaults()
	if len(metadata.Classes) == 0 {
		return nil, fmt.Errorf("model %q has no class names", cfg.ModelPath)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXBackend{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		Metadata:     metadata,
	}, nil
}

// fillFromModel completes metadata the sidecar JSON left out, using the
// tensor info and custom metadata embedded in the ONNX file.
func fillFromModel(modelPath string, metadata *Metadata) error {
	if metadata.InputName == "" || len(metadata.InputShape) == 0 || len(metadata.OutputShape) == 0 {
		inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			return fmt.Errorf("failed to inspect model %q: %w", modelPath, err)
		}
		if len(inputs) == 0 || len(outputs) == 0 {
			return fmt.Errorf("model %q has no inputs or outputs", modelPath)
		}
		if metadata.InputName == "" {
			metadata.InputName = inputs[0].Name
		}
		if metadata.OutputName == "" {
			metadata.OutputName = outputs[0].Name
		}
		if len(metadata.InputShape) == 0 {
			metadata.InputShape = fixedShape(inputs[0].Dimensions)
		}
		if len(metadata.OutputShape) == 0 {
			metadata.OutputShape = fixedShape(outputs[0].Dimensions)
		}
	}

	if len(metadata.Classes) > 0 {
		return nil
	}
	modelMeta, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return fmt.Errorf("failed to read model metadata: %w", err)
	}
	defer modelMeta.Destroy()

	raw, ok, err := modelMeta.LookupCustomMetadataMap("names")
	if err != nil {
		return fmt.Errorf("failed to read class names: %w", err)
	}
	if !ok {
		return nil
	}
	classes, err := parseNames(raw)
	if err != nil {
		return err
	}
	metadata.Classes = classes
	return nil
}

// fixedShape pins dynamic (negative) dimensions to 1.
func fixedShape(dims ort.Shape) []int64 {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

func (b *ONNXBackend) Name() string {
	return "onnxruntime"
}

func (b *ONNXBackend) PredictFile(ctx context.Context, path string) (Result, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return Result{}, err
	}
	inputData := preprocessImage(img, b.Metadata.ImageSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return Result{}, fmt.Errorf("%w: backend closed", ErrBackendUnavailable)
	}
	// Run itself cannot be interrupted; ctx only bounds the wait for mu.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	copy(b.inputTensor.GetData(), inputData)
	if err := b.session.Run(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBackendInference, err)
	}

	scores := b.outputTensor.GetData()
	n := len(b.Metadata.Classes)
	if len(scores) < n {
		return Result{}, fmt.Errorf("%w: %d scores for %d classes", ErrBackendProtocol, len(scores), n)
	}
	classID, confidence := top1(scores[:n])
	return Result{
		ClassID:    classID,
		Label:      b.Metadata.Classes[classID],
		Confidence: confidence,
		NumClasses: n,
	}, nil
}

func (b *ONNXBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	if b.inputTensor != nil {
		b.inputTensor.Destroy()
		b.inputTensor = nil
	}
	if b.outputTensor != nil {
		b.outputTensor.Destroy()
		b.outputTensor = nil
	}
	b.session.Destroy()
	b.session = nil
	return ort.DestroyEnvironment()
}

// top1 returns the argmax and its probability. Raw logits are softmaxed;
// scores that already form a distribution are used as is.
func top1(scores []float32) (int, float32) {
	maxIdx := 0
	maxVal := scores[0]
	var sum float64
	isDist := true
	for i, v := range scores {
		if v < 0 || v > 1 {
			isDist = false
		}
		sum += float64(v)
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	if isDist && math.Abs(sum-1) < 1e-3 {
		return maxIdx, maxVal
	}

	var denom float64
	for _, v := range scores {
		denom += math.Exp(float64(v - maxVal))
	}
	return maxIdx, float32(1 / denom)
}
