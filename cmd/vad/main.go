// Command vad runs a batch VAD pass over a WAV file and prints the
// detected speech segments.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/jims57/silero-vad/pkg/audio"
	"github.com/jims57/silero-vad/pkg/trace"
	"github.com/jims57/silero-vad/pkg/vad"
)

func main() {
	godotenv.Load()

	var (
		modelPath = flag.String("model", os.Getenv("SILERO_MODEL"), "path to silero_vad.onnx")
		inputPath = flag.String("input", "", "path to a mono WAV file")
		threshold = flag.Float64("threshold", 0, "speech probability threshold (0 = default)")
	)
	flag.Parse()

	if *modelPath == "" || *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vad -model silero_vad.onnx -input audio.wav [-threshold 0.5]")
		os.Exit(2)
	}

	ctx := context.Background()
	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Fatalf("trace init: %v", err)
	}
	defer trace.Shutdown(ctx)

	samples, rate, err := audio.ReadWAVFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	if rate != 8000 && rate != 16000 {
		coerced, err := audio.Resample(samples, rate, 16000)
		if err != nil {
			log.Fatalf("resample input: %v", err)
		}
		log.Printf("resampled input from %d Hz to 16000 Hz", rate)
		samples, rate = coerced, 16000
	}

	if err := vad.InitRuntime(""); err != nil {
		log.Fatalf("init runtime: %v", err)
	}
	defer vad.DestroyRuntime()

	detector, err := vad.NewDetector(vad.Config{
		SampleRate: rate,
		Threshold:  float32(*threshold),
	}, *modelPath)
	if err != nil {
		log.Fatalf("create detector: %v", err)
	}
	defer detector.Destroy()

	var segments []vad.Segment
	err = trace.WithSpan(ctx, "vad.process_audio", func(ctx context.Context) error {
		var err error
		segments, err = detector.ProcessAudio(samples)
		return err
	})
	if err != nil {
		log.Fatalf("process audio: %v", err)
	}

	log.Printf("engine %s: %d segments in %.2fs of audio",
		vad.Version, len(segments), float64(len(samples))/float64(rate))
	for i, seg := range segments {
		fmt.Printf("segment %d: %.3fs - %.3fs (confidence %.2f)\n",
			i+1, seg.StartTime, seg.EndTime, seg.Confidence)
	}
}
