// builder.go
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/arc-language/bundlekit/pkg/core"
)

// Phase names
const (
	PhaseConfigure = "configure"
	PhaseCompile   = "compile"
	PhaseInstall   = "install"
	PhaseSetup     = "setup"
)

// Config configures the builder
type Config struct {
	Make     string // make program, default "make"
	Parallel bool   // false pins make to a single job
	Debug    bool
	Logger   *log.Logger
}

// Request describes one component build
type Request struct {
	Component     string
	SourceTree    string   // unpacked source containing ./configure
	Prefix        string   // --prefix, the final installed location
	DestDir       string   // DESTDIR for make install
	Env           Env      // the complete environment of every phase
	ConfigureArgs []string // appended to ./configure
}

// Step is one command of a build
type Step struct {
	Phase string
	Argv  []string
}

// Builder runs the configure/compile/install protocol of autotools projects
type Builder struct {
	config *Config
	logger *log.Logger
}

// New creates a builder
func New(cfg *Config) *Builder {
	if cfg.Make == "" {
		cfg.Make = "make"
	}

	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.New(os.Stdout, "[DEBUG] ", log.LstdFlags)
		} else {
			logger = log.New(io.Discard, "", 0)
		}
	}

	return &Builder{config: cfg, logger: logger}
}

// Jobs returns the make job count
func (b *Builder) Jobs() int {
	if b.config.Parallel {
		return runtime.NumCPU()
	}
	return 1
}

// Steps returns the commands Build runs for req, in order
func (b *Builder) Steps(req *Request) []Step {
	jobs := "-j" + strconv.Itoa(b.Jobs())

	configure := append([]string{"./configure", "--disable-dependency-tracking", "--prefix=" + req.Prefix}, req.ConfigureArgs...)
	return []Step{
		{Phase: PhaseConfigure, Argv: configure},
		{Phase: PhaseCompile, Argv: []string{b.config.Make, jobs}},
		{Phase: PhaseInstall, Argv: []string{b.config.Make, jobs, "install", "DESTDIR=" + req.DestDir}},
	}
}

// Build runs every step of req. The first failing step aborts the build and
// is returned as a *core.BuildError with the captured output.
func (b *Builder) Build(ctx context.Context, req *Request) error {
	env := req.Env.With("MAKEFLAGS", "-j"+strconv.Itoa(b.Jobs()))

	b.logger.Printf("Building %s in %s", req.Component, req.SourceTree)
	for i, step := range b.Steps(req) {
		b.logger.Printf("Step %d: %s", i+1, step.Phase)
		if err := b.Run(ctx, req.Component, step.Phase, req.SourceTree, env, step.Argv); err != nil {
			return err
		}
		b.logger.Printf("  ✓ %s complete", step.Phase)
	}
	return nil
}

// Run executes argv in dir with exactly env as its environment
func (b *Builder) Run(ctx context.Context, component, phase, dir string, env Env, argv []string) error {
	if len(argv) == 0 {
		return &core.BuildError{Component: component, Phase: phase, ExitCode: -1, Err: errors.New("empty command")}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env.Environ()
	cmd.Stdout = io.MultiWriter(&stdout, b.logger.Writer())
	cmd.Stderr = io.MultiWriter(&stderr, b.logger.Writer())

	b.logger.Printf("  $ %v", argv)
	err := cmd.Run()
	if err == nil {
		return nil
	}

	buildErr := &core.BuildError{
		Component: component,
		Phase:     phase,
		ExitCode:  -1,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		buildErr.Err = ctx.Err()
	case errors.As(err, &exitErr):
		buildErr.ExitCode = exitErr.ExitCode()
	default:
		buildErr.Err = fmt.Errorf("starting %s: %w", argv[0], err)
	}

	b.logger.Printf("  ✗ %s failed (exit %d)", phase, buildErr.ExitCode)
	return buildErr
}
