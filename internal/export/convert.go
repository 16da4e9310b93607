package export

import (
	"context"
	"fmt"
	"os/exec"
)

// Runner executes an external command. The production runner shells out
// to ogr2ogr; tests substitute a recorder.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

// Converter drives ogr2ogr format conversions. Arguments are passed as
// an argv vector so scratch paths never traverse a shell.
type Converter struct {
	runner Runner
}

func NewConverter(runner Runner) *Converter {
	if runner == nil {
		runner = execRunner{}
	}
	return &Converter{runner: runner}
}

func (c *Converter) toDriver(ctx context.Context, driver, dst, src string) error {
	if err := c.runner.Run(ctx, "ogr2ogr", "-f", driver, dst, src); err != nil {
		return fmt.Errorf("convert to %s: %w", driver, err)
	}
	return nil
}

func (c *Converter) ToCSV(ctx context.Context, dst, src string) error {
	return c.toDriver(ctx, "CSV", dst, src)
}

func (c *Converter) ToKML(ctx context.Context, dst, src string) error {
	return c.toDriver(ctx, "KML", dst, src)
}

// ToShapefile writes the shapefile component files into dstDir.
func (c *Converter) ToShapefile(ctx context.Context, dstDir, src string) error {
	return c.toDriver(ctx, "ESRI Shapefile", dstDir, src)
}
