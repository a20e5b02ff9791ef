package main

import (
	"context"
	"fmt"
	"go/format"
	"log"
	"os"
	"time"

	"github.com/delaneyj/bindparty/cmd/propgen/templates"
	"github.com/urfave/cli/v3"
)

const (
	packageKey = "package"
	typeKey    = "type"
	fieldsKey  = "fields"
	stepsKey   = "steps"
	outKey     = "out"
)

func main() {
	cmd := &cli.Command{
		Name:  "propgen",
		Usage: "Generate observable property accessors for a type embedding notify.Object",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     packageKey,
				Usage:    "Package of the generated file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     typeKey,
				Usage:    "Type the accessors are generated for",
				Required: true,
			},
			&cli.StringFlag{
				Name:     fieldsKey,
				Usage:    "Comma separated Name:type pairs",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  stepsKey,
				Usage: "Also generate a chain step per property",
				Value: true,
			},
			&cli.StringFlag{
				Name:  outKey,
				Usage: "Output file, stdout when empty",
			},
		},
		Action: generate,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	typ := cmd.String(typeKey)
	log.Printf("propgen for %s started", typ)
	defer func() {
		log.Printf("propgen for %s finished in %v", typ, time.Since(start))
	}()

	fields, err := templates.ParseFields(cmd.String(fieldsKey))
	if err != nil {
		return err
	}
	spec := templates.Spec{
		Package: cmd.String(packageKey),
		Type:    typ,
		Fields:  fields,
		Steps:   cmd.Bool(stepsKey),
	}

	src, err := format.Source([]byte(templates.Properties(spec)))
	if err != nil {
		return fmt.Errorf("format generated code: %w", err)
	}

	out := cmd.String(outKey)
	if out == "" {
		_, err := os.Stdout.Write(src)
		return err
	}
	if err := os.WriteFile(out, src, 0644); err != nil {
		return err
	}
	return nil
}
