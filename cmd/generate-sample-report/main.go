// Command generate-sample-report runs a short, scaled-down scenario against
// an in-process userapi server and writes the resulting report, so report
// templates can be previewed without a real target.
//
//	go run ./cmd/generate-sample-report [output.html|.json|.xml] [scenario]
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/xdung24/restload/internal/report"
	"github.com/xdung24/restload/internal/runner"
	"github.com/xdung24/restload/internal/scenario"
	"github.com/xdung24/restload/internal/userapi"
)

// sampleStages keeps the shape of the real ramp at a fraction of its length.
var sampleStages = []scenario.RampStage{
	{Duration: 3 * time.Second, Target: 5},
	{Duration: 3 * time.Second, Target: 10},
	{Duration: 2 * time.Second, Target: 0},
}

func main() {
	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}
	name := "upsert-user"
	if len(os.Args) > 2 {
		name = os.Args[2]
	}

	if err := generate(outputPath, name); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sample report generated: %s\n", outputPath)
}

func generate(outputPath, name string) error {
	if _, err := report.FormatForPath(outputPath); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- userapi.New(userapi.DefaultConfig()).Serve(ctx, ln) }()

	target := scenario.DefaultTarget()
	target.BaseURL = "http://" + ln.Addr().String()

	sc, err := scenario.New(name, target)
	if err != nil {
		return err
	}
	sc.Options.Stages = sampleStages
	sc.Description += " (sample run against a local userapi)"

	eng, err := runner.NewEngine(sc, runner.Options{GracefulStop: 5 * time.Second})
	if err != nil {
		return err
	}
	result, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	if err := report.WriteFile(result, outputPath); err != nil {
		return err
	}

	cancel()
	return <-served
}
