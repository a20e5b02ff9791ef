package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
)

const (
	profileKey    = "profile"
	iterationsKey = "iterations"
	scenariosKey  = "scenarios"
	traceKey      = "trace"
	cpuProfileKey = "cpuprofile"
	quietKey      = "quiet"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure change propagation through chains, derived properties and commands",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "TOML profile with iterations, widths, heights and scenarios",
			},
			&cli.UintFlag{
				Name:  iterationsKey,
				Usage: "Timed iterations per size",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  scenariosKey,
				Usage: "Comma separated scenarios to run (chain, derived, command)",
			},
			&cli.StringFlag{
				Name:  traceKey,
				Usage: "Write every measured row as JSON to this file",
			},
			&cli.StringFlag{
				Name:  cpuProfileKey,
				Usage: "Write a CPU profile to this file",
			},
			&cli.BoolFlag{
				Name:  quietKey,
				Usage: "Only print the summary table",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	p, err := loadProfile(cmd.String(profileKey))
	if err != nil {
		return err
	}
	if cmd.IsSet(iterationsKey) {
		p.Iterations = int(cmd.Uint(iterationsKey))
	}
	if s := cmd.String(scenariosKey); s != "" {
		p.Scenarios = strings.Split(s, ",")
	}
	if t := cmd.String(traceKey); t != "" {
		p.Trace = t
	}
	if err := p.validate(); err != nil {
		return err
	}

	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	start := time.Now()
	log.Printf("benchmark started, %d iterations per size", p.Iterations)
	defer func() {
		log.Printf("benchmark finished in %v", time.Since(start))
	}()

	var all []row
	for _, name := range p.Scenarios {
		s, ok := scenarios[name]
		if !ok {
			return fmt.Errorf("unknown scenario %q", name)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("running %s", name)
		rows := measure(name, s, p)
		if !cmd.Bool(quietKey) {
			renderScenario(os.Stdout, name, rows)
		}
		all = append(all, rows...)
	}

	renderSummary(os.Stdout, all)
	if p.Trace != "" {
		if err := writeTrace(p.Trace, all); err != nil {
			return err
		}
		log.Printf("wrote %d rows to %s", len(all), p.Trace)
	}
	return nil
}
