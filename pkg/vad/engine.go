package vad

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	stateLen   = 2 * 1 * 128
	contextLen = 64
)

// ortEngine runs Silero VAD v5 inference through ONNX Runtime. The model
// graph has three inputs (input, state, sr) and two outputs (output,
// stateN); the hidden state is fed back on every call.
type ortEngine struct {
	session    *ort.DynamicAdvancedSession
	sampleRate int

	// Recurrent model state, shape [2, 1, 128].
	state [stateLen]float32

	inputNames  []string
	outputNames []string
}

// newEngine loads the model at modelPath and creates an inference session
// limited to one intra-op and one inter-op worker. Failures are reported
// as ErrModelLoad.
func newEngine(modelPath string, sampleRate int) (*ortEngine, error) {
	if err := ensureRuntime(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	e := &ortEngine{
		sampleRate:  sampleRate,
		inputNames:  []string{"input", "state", "sr"},
		outputNames: []string{"output", "stateN"},
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session options: %v", ErrModelLoad, err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("%w: failed to set graph optimization level: %v", ErrModelLoad, err)
	}
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("%w: failed to set intra-op threads: %v", ErrModelLoad, err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("%w: failed to set inter-op threads: %v", ErrModelLoad, err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, e.inputNames, e.outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrModelLoad, err)
	}

	e.session = session
	return e, nil
}

// Infer implements Engine. input is the context-prefixed window; the
// hidden state is updated from the model's stateN output on success.
func (e *ortEngine) Infer(input []float32) (float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create input tensor: %v", ErrInference, err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), e.state[:])
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create state tensor: %v", ErrInference, err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(e.sampleRate)})
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create sr tensor: %v", ErrInference, err)
	}
	defer srTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create output tensor: %v", ErrInference, err)
	}
	defer outputTensor.Destroy()

	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create stateN tensor: %v", ErrInference, err)
	}
	defer stateNTensor.Destroy()

	inputs := []ort.Value{inputTensor, stateTensor, srTensor}
	outputs := []ort.Value{outputTensor, stateNTensor}
	if err := e.session.Run(inputs, outputs); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInference, err)
	}

	copy(e.state[:], stateNTensor.GetData())

	outputData := outputTensor.GetData()
	if len(outputData) == 0 {
		return 0, fmt.Errorf("%w: empty output", ErrInference)
	}
	return outputData[0], nil
}

// Reset implements Engine.
func (e *ortEngine) Reset() error {
	clear(e.state[:])
	return nil
}

// Destroy implements Engine.
func (e *ortEngine) Destroy() error {
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		e.session = nil
	}
	return nil
}

var _ Engine = (*ortEngine)(nil)
