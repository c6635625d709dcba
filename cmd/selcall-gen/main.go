package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/audio"
	"github.com/pietro2356/gr-selcall/pkg/encoder"
	"github.com/pietro2356/gr-selcall/pkg/logger"
	"github.com/pietro2356/gr-selcall/pkg/protocol"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// selcall-gen renders a single selective call to a WAV file or to raw
// s16le PCM on stdout, for testing decoders and driving transmitters
// from scripts.
func main() {
	// Parse command line flags
	protoName := flag.String("protocol", "ZVEI-1", "Signalling standard (see -list)")
	dest := flag.String("dest", "", "Destination code to call (required)")
	source := flag.String("source", "", "Own code sent with the call, empty for destination-only")
	out := flag.String("out", "call.wav", "Output WAV path, or - for s16le PCM on stdout")
	rate := flag.Int("rate", 48000, "Sample rate in Hz")
	amplitude := flag.Float64("amplitude", 0.8, "Tone amplitude, 0..1")
	fieldOrder := flag.String("field-order", "source-first", "Field order: source-first or destination-first")
	leadMS := flag.Int("lead-ms", 700, "Leading silence in milliseconds")
	tailMS := flag.Int("tail-ms", 700, "Trailing silence in milliseconds")
	codeLength := flag.Int("code-length", 0, "Code length, 0 for the protocol standard")
	toneMS := flag.Int("tone-ms", 0, "Tone duration in milliseconds, 0 for the protocol standard")
	list := flag.Bool("list", false, "List supported protocols and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("selcall-gen %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if *list {
		listProtocols()
		os.Exit(0)
	}

	// PCM may be streaming to stdout, so logs always go to stderr
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
		Output: os.Stderr,
	})

	if *dest == "" {
		fmt.Fprintln(os.Stderr, "selcall-gen: -dest is required")
		flag.Usage()
		os.Exit(2)
	}

	spec, err := protocol.Get(*protoName)
	if err != nil {
		log.Error("Unknown protocol", logger.Error(err))
		os.Exit(1)
	}

	order, err := encoder.ParseFieldOrder(*fieldOrder)
	if err != nil {
		log.Error("Invalid field order", logger.Error(err))
		os.Exit(1)
	}

	enc, err := encoder.New(encoder.Config{
		Spec:         spec,
		SampleRate:   *rate,
		CodeLength:   *codeLength,
		ToneDuration: time.Duration(*toneMS) * time.Millisecond,
		Amplitude:    *amplitude,
		LeadIn:       time.Duration(*leadMS) * time.Millisecond,
		TailOut:      time.Duration(*tailMS) * time.Millisecond,
		FieldOrder:   order,
	})
	if err != nil {
		log.Error("Failed to initialize encoder", logger.Error(err))
		os.Exit(1)
	}

	rendering, err := enc.Call(*source, *dest)
	if err != nil {
		log.Error("Failed to render call", logger.Error(err))
		os.Exit(1)
	}
	samples := rendering.RenderAll()

	if *out == "-" {
		if err := audio.NewStreamSink(os.Stdout).Write(samples); err != nil {
			log.Error("Failed to write PCM to stdout", logger.Error(err))
			os.Exit(1)
		}
	} else {
		if err := audio.WriteFile(*out, samples, *rate); err != nil {
			log.Error("Failed to write WAV file", logger.Error(err))
			os.Exit(1)
		}
	}

	log.Info("Call rendered",
		logger.String("protocol", spec.Name),
		logger.String("symbols", rendering.Symbols()),
		logger.Float64("duration_s", rendering.Duration().Seconds()),
		logger.Int64("samples", rendering.TotalSamples()),
		logger.String("output", *out))
}

// listProtocols prints each registered standard with its timing defaults.
func listProtocols() {
	for _, name := range protocol.Names() {
		spec, err := protocol.Get(name)
		if err != nil {
			continue
		}
		fmt.Printf("%-8s %4.0f ms tones, %d-symbol codes\n",
			spec.Name,
			float64(spec.ToneDuration)/float64(time.Millisecond),
			spec.DefaultCodeLen)
	}
}
