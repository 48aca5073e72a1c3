// Command vad-stream feeds a WAV file chunk-by-chunk through the
// streaming segmenter and writes one WAV file per detected speech
// segment.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/jims57/silero-vad/pkg/audio"
	"github.com/jims57/silero-vad/pkg/vad"
)

func main() {
	godotenv.Load()

	var (
		modelPath  = flag.String("model", os.Getenv("SILERO_MODEL"), "path to silero_vad.onnx")
		inputPath  = flag.String("input", "", "path to a mono WAV file")
		outputDir  = flag.String("out", "segments", "directory for segment WAV files")
		outputRate = flag.Int("out-rate", 0, "segment sample rate (0 = detector rate)")
		chunkMs    = flag.Int("chunk-ms", 100, "chunk size in milliseconds")
	)
	flag.Parse()

	if *modelPath == "" || *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: vad-stream -model silero_vad.onnx -input audio.wav [-out segments]")
		os.Exit(2)
	}

	samples, rate, err := audio.ReadWAVFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	if err := vad.InitRuntime(""); err != nil {
		log.Fatalf("init runtime: %v", err)
	}
	defer vad.DestroyRuntime()

	detectorRate := rate
	if detectorRate != 8000 && detectorRate != 16000 {
		detectorRate = 16000
	}

	detector, err := vad.NewDetector(vad.Config{SampleRate: detectorRate}, *modelPath)
	if err != nil {
		log.Fatalf("create detector: %v", err)
	}
	defer detector.Destroy()

	stream, err := vad.NewStreamSegmenter(detector, vad.StreamConfig{
		OutputDir:        *outputDir,
		OutputSampleRate: *outputRate,
	})
	if err != nil {
		log.Fatalf("create stream: %v", err)
	}
	defer stream.Close()

	chunkSize := rate * *chunkMs / 1000
	if chunkSize < 1 {
		chunkSize = 1
	}

	for start := 0; start < len(samples); start += chunkSize {
		end := start + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		if _, err := stream.ProcessChunkResampled(samples[start:end], rate); err != nil {
			log.Fatalf("process chunk at sample %d: %v", start, err)
		}
	}

	count, err := stream.Finalize()
	if err != nil {
		log.Fatalf("finalize: %v", err)
	}

	log.Printf("stream %s: wrote %d segments to %s", stream.ID(), count, *outputDir)
	for i, seg := range stream.Segments() {
		fmt.Printf("segment %d: %.3fs - %.3fs (confidence %.2f)\n",
			i+1, seg.StartTime, seg.EndTime, seg.Confidence)
	}
}
