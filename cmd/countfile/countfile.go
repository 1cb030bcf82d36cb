// Command countfile aggregates a recorded tracker detection log into a
// count summary without running the HTTP service. Useful for checking a
// tracker's output offline:
//
//	countfile -type livestock -source pasture.mp4 pasture.ndjson
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/animal.report/internal/count"
	"github.com/banshee-data/animal.report/internal/detect"
)

func main() {
	detTypeFlag := flag.String("type", "livestock", "detection type (birds|livestock)")
	source := flag.String("source", "", "video source label (default: the log filename)")
	asJSON := flag.Bool("json", false, "print the aggregation result as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: countfile [-type birds|livestock] [-source label] [-json] <detection log>")
	}
	logPath := flag.Arg(0)

	detType, err := detect.ParseDetectionType(*detTypeFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *source == "" {
		*source = logPath
	}

	f, err := os.Open(logPath)
	if err != nil {
		log.Fatalf("open detection log: %v", err)
	}
	defer f.Close()

	frames, err := detect.ReadLog(f)
	if err != nil {
		log.Fatalf("parse detection log: %v", err)
	}

	agg := count.NewAggregator(*source)
	for i, frame := range frames {
		if err := agg.AddFrame(frame); err != nil {
			log.Fatalf("frame %d: %v", i+1, err)
		}
	}
	result := agg.Finalize()

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode result: %v", err)
		}
		return
	}

	fmt.Print(count.Summary(detType.Domain(), result, nil))
}
