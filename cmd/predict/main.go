package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/Brownie44l1/pulmoscan-api/pkg/client"
)

type predictArgs struct {
	URL     string        `arg:"--url,env:PULMOSCAN_URL" default:"http://localhost:8000"`
	Timeout time.Duration `arg:"--timeout" default:"60s"`
	NoNotes bool          `arg:"--no-notes" help:"omit the clinical notes for the predicted class"`
	Image   string        `arg:"positional,required" help:"chest X-ray image to classify"`
}

type report struct {
	*client.PredictResponse
	Notes *client.ClinicalNote `json:"notes,omitempty"`
}

func newReport(resp *client.PredictResponse, withNotes bool) report {
	r := report{PredictResponse: resp}
	if withNotes {
		if note, ok := client.NoteFor(resp.PredictedClass); ok {
			r.Notes = &note
		}
	}
	return r
}

func writeReport(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func main() {
	var args predictArgs
	arg.MustParse(&args)

	c, err := client.New(args.URL, nil)
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	f, err := os.Open(args.Image)
	if err != nil {
		log.Fatalf("open image: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), args.Timeout)
	defer cancel()

	resp, err := c.Predict(ctx, filepath.Base(args.Image), f)
	if err != nil {
		log.Fatalf("predict: %v", err)
	}

	if err := writeReport(os.Stdout, newReport(resp, !args.NoNotes)); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}
