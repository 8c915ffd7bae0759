// rwsort sorts fixed-width flow records by an arbitrary composite key,
// spilling to temp files and merging back when the input exceeds the
// configured memory budget.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pkg/profile"

	"github.com/hrbrmstr/rwsort/internal/config"
	"github.com/hrbrmstr/rwsort/internal/driver"
	"github.com/hrbrmstr/rwsort/internal/merge"
	"github.com/hrbrmstr/rwsort/internal/record"
	"github.com/hrbrmstr/rwsort/internal/stream"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rwsort: ")

	var (
		fieldsFlag  = flag.String("fields", "", "comma-separated list of sort fields, in priority order")
		reverseFlag = flag.Bool("reverse", false, "reverse the sort order")
		presorted   = flag.Bool("presorted-input", false, "treat inputs as already sorted under the same fields/reverse")
		bufSizeFlag = flag.String("sort-buffer-size", "512m", "in-memory sort buffer size (accepts k/m/g suffixes)")
		outputPath  = flag.String("output-stream", "", "output file path (required)")
		compress    = flag.Bool("compress", false, "compress the output stream with lz4")
		tempDir     = flag.String("temp-dir", os.TempDir(), "directory for temporary run files")
		configPath  = flag.String("config", "", "optional TOML config file; flags override its values")
		cpuProfile  = flag.Bool("cpuprofile", false, "write a CPU profile to ./cpu.pprof")
		memProfile  = flag.Bool("memprofile", false, "write a memory profile to ./mem.pprof")
	)
	flag.Parse()

	fields := config.MergeFieldList(*fieldsFlag)
	reverse := *reverseFlag
	isPresorted := *presorted
	bufSizeRaw := *bufSizeFlag
	out := *outputPath
	useCompress := *compress
	root := *tempDir
	inputFiles := flag.Args()

	if *configPath != "" {
		f, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		if len(fields) == 0 {
			fields = f.Fields
		}
		if !flagWasSet("reverse") {
			reverse = f.Reverse
		}
		if !flagWasSet("presorted-input") {
			isPresorted = f.PresortedInput
		}
		if !flagWasSet("sort-buffer-size") && f.SortBufferSize != "" {
			bufSizeRaw = f.SortBufferSize
		}
		if !flagWasSet("output-stream") && f.OutputStream != "" {
			out = f.OutputStream
		}
		if !flagWasSet("compress") {
			useCompress = f.Compress
		}
		if !flagWasSet("temp-dir") && f.TempDir != "" {
			root = f.TempDir
		}
		if len(inputFiles) == 0 {
			inputFiles = f.InputFiles
		}
	}

	if out == "" {
		log.Fatal("--output-stream is required")
	}
	if len(inputFiles) == 0 {
		log.Fatal("at least one input file is required")
	}

	bufSize, err := config.ParseByteSize(bufSizeRaw)
	if err != nil {
		log.Fatalf("sort-buffer-size: %v", err)
	}

	plan, err := config.Resolve(fields, reverse, nil, record.Width)
	if err != nil {
		log.Fatalf("fields: %v", err)
	}

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	} else if *memProfile {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	inputs := make([]driver.InputStream, 0, len(inputFiles))
	for _, path := range inputFiles {
		in, err := stream.OpenInput(path, record.Width)
		if err != nil {
			log.Fatalf("open input %q: %v", path, err)
		}
		inputs = append(inputs, in)
	}

	var outWriter merge.OutputWriter
	if useCompress {
		outWriter, err = stream.CreateCompressedOutput(out, record.Width)
	} else {
		outWriter, err = stream.CreateFileOutput(out, record.Width)
	}
	if err != nil {
		log.Fatalf("create output %q: %v", out, err)
	}

	cfg := driver.Config{
		Plan:         plan,
		BufferBudget: bufSize,
		Fanout:       merge.FanoutBudget(8),
		TempRoot:     root,
	}

	if isPresorted {
		err = driver.RunPresorted(cfg, inputs, outWriter)
	} else {
		err = driver.RunRandom(cfg, inputs, outWriter)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rwsort: %v\n", err)
		os.Exit(1)
	}
}

// flagWasSet reports whether name was explicitly passed on the command
// line, so a --config file's values only fill in flags the user left at
// their default.
func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
