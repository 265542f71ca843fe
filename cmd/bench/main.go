package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/bidtrail/internal/platform"
	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

func main() {
	count := flag.Int("count", 200, "Number of procurements to generate")
	uri := flag.String("ledger", "", "Ledger URI (default: a temporary file ledger)")
	codec := flag.String("codec", "json", "Payload codec: json, cbor")
	keep := flag.Bool("keep", false, "Keep the temporary ledger after running")
	flag.Parse()

	if *uri == "" {
		benchDir, err := os.MkdirTemp("", "bidtrail_bench_")
		if err != nil {
			panic(err)
		}
		defer func() {
			if !*keep {
				os.RemoveAll(benchDir)
			} else {
				fmt.Printf("Keeping bench dir: %s\n", benchDir)
			}
		}()
		*uri = "fs://" + filepath.Join(benchDir, "ledger")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	open := func() *platform.Engine {
		engine, err := platform.New(ctx, *uri, platform.WithLogger(logger), platform.WithCodec(*codec), platform.WithPageSize(1_000_000))
		if err != nil {
			panic(err)
		}
		return engine
	}

	// Each procurement gets an initiation with one document, an approval and
	// an upload action: 3 statuses, 2 documents and 5 events.
	fmt.Printf("Generating %d procurements on %s...\n", *count, *uri)
	engine := open()
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		id := fmt.Sprintf("PR-BENCH-%05d", i)
		title := "Benchmark Supplies"
		doc := func(kind string) []core.Metadata {
			return []core.Metadata{{
				core.FieldDocumentType: kind,
				core.FieldHash:         fmt.Sprintf("%x-%d", i, len(kind)),
				core.FieldFileKey:      fmt.Sprintf("bench/%d/%s.pdf", i, kind),
				core.FieldFileSize:     int64(1024 + i),
			}}
		}
		steps := []workflow.AdvanceRequest{
			{ProcurementID: id, Title: title, Action: workflow.ActionInitiate, Documents: doc("Purchase Request")},
			{ProcurementID: id, Title: title, Action: "approve_pr"},
			{ProcurementID: id, Title: title, Action: "pre_procurement", Documents: doc("Pre-Procurement Conference Minutes")},
		}
		for _, req := range steps {
			if _, err := engine.Workflow.Advance(ctx, req); err != nil {
				panic(err)
			}
		}
	}
	genDuration := time.Since(startGen)
	fmt.Printf("Generation took: %v\n", genDuration)
	engine.Close()

	// Run 1 reads through a fresh engine, as a new CLI invocation would.
	cold := open()
	defer cold.Close()
	fmt.Println("Running List (Run 1 - Fresh engine)...")
	start := time.Now()
	list, err := cold.Workflow.List(ctx, "")
	if err != nil {
		panic(err)
	}
	duration := time.Since(start)
	fmt.Printf("Run 1 Result: %v (Items: %d)\n", duration, len(list))

	fmt.Println("Running List (Run 2 - Same engine)...")
	start = time.Now()
	list2, err := cold.Workflow.List(ctx, "")
	if err != nil {
		panic(err)
	}
	duration2 := time.Since(start)
	fmt.Printf("Run 2 Result: %v (Items: %d)\n", duration2, len(list2))

	var single time.Duration
	if len(list2) > 0 {
		start = time.Now()
		if _, err := cold.Workflow.ViewKey(ctx, list2[len(list2)-1].Key); err != nil {
			panic(err)
		}
		single = time.Since(start)
	}

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d procurements, codec %s):\n", *count, *codec)
	fmt.Printf("  Write:  %v (%v per procurement)\n", genDuration, genDuration/time.Duration(max(*count, 1)))
	fmt.Printf("  List 1: %v\n", duration)
	fmt.Printf("  List 2: %v\n", duration2)
	fmt.Printf("  View:   %v\n", single)
	fmt.Printf("--------------------------------------------------\n")
}
