package signal

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"fxpilot/internal/domain"
)

// Compile-time interface check.
var _ Source = (*Model)(nil)

// windowSize is the number of mid-price returns the model consumes.
const windowSize = 60

var ortInitOnce sync.Once

func initORT() error {
	var err error
	ortInitOnce.Do(func() {
		libPath := "/usr/lib/libonnxruntime.so"
		switch runtime.GOOS {
		case "windows":
			libPath = "onnxruntime.dll"
		case "darwin":
			libPath = "libonnxruntime.dylib"
		}
		ort.SetSharedLibraryPath(libPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// Model runs an ONNX classifier over a rolling window of mid-price returns.
// The model takes a (1, windowSize, 1) float32 input and produces a (1, 3)
// probability vector ordered SELL, HOLD, BUY.
type Model struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	mu   sync.Mutex
	mids map[string][]float64
}

// NewModel loads the ONNX model at modelPath and prepares an inference
// session.
func NewModel(modelPath string) (*Model, error) {
	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing onnxruntime: %w", err)
	}

	inputShape := ort.NewShape(1, windowSize, 1)
	inputTensor, err := ort.NewTensor(inputShape, make([]float32, windowSize))
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Model{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		mids:    make(map[string][]float64),
	}, nil
}

// Observe appends a mid price to the symbol's rolling window.
func (m *Model) Observe(symbol string, mid float64) {
	if mid <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	window := append(m.mids[symbol], mid)
	if len(window) > windowSize+1 {
		window = window[len(window)-windowSize-1:]
	}
	m.mids[symbol] = window
}

// Signal runs inference over the symbol's window. Until enough prices have
// been observed it returns HOLD with zero confidence.
func (m *Model) Signal(_ context.Context, symbol string) (domain.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := m.mids[symbol]
	if len(window) < windowSize+1 {
		return domain.Signal{Label: "HOLD", Confidence: 0}, nil
	}

	// Feature vector: consecutive returns over the window.
	data := m.input.GetData()
	for i := 0; i < windowSize; i++ {
		prev, cur := window[i], window[i+1]
		data[i] = float32((cur - prev) / prev)
	}

	if err := m.session.Run(); err != nil {
		return domain.Signal{}, fmt.Errorf("inference failed: %w", err)
	}

	probs := m.output.GetData()
	if len(probs) < 3 {
		return domain.Signal{}, fmt.Errorf("unexpected output size %d", len(probs))
	}

	labels := []string{"SELL", "HOLD", "BUY"}
	best := 0
	for i := 1; i < 3; i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	confidence := int(probs[best] * 100)
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 0 {
		confidence = 0
	}
	return domain.Signal{Label: labels[best], Confidence: confidence}, nil
}

// Close releases the inference session and tensors.
func (m *Model) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}
